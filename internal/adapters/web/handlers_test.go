package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"inventory-ledger/internal/adapters/web"
	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := core.NewMemoryStore()
	svc := app.NewAppService(core.NewLedgerEngine(store, log), core.NewAggregationService(store))
	token, err := web.IssueToken(testSecret, "dana", "clerk", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return &testServer{
		t:       t,
		handler: web.NewHandler(svc, log, []string{"http://ui.test"}, testSecret),
		token:   token,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	rec := s.do(http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	s.token = ""
	if rec := s.do(http.MethodGet, "/api/items", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	s.token = "not-a-jwt"
	if rec := s.do(http.MethodGet, "/api/items", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	forged, _ := web.IssueToken("other-secret", "mallory", "", time.Hour)
	s.token = forged
	if rec := s.do(http.MethodGet, "/api/items", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", rec.Code)
	}

	expired, _ := web.IssueToken(testSecret, "dana", "", -time.Minute)
	s.token = expired
	if rec := s.do(http.MethodGet, "/api/items", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token: status = %d, want 401", rec.Code)
	}
}

func TestMovementFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/items", `{"name":"Drill bit","unit_price":"3.20","reorder_threshold":5,"opening_quantity":12}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body %s", rec.Code, rec.Body.String())
	}
	item := decode[core.Item](t, rec)
	if item.Quantity != 12 {
		t.Fatalf("quantity = %d, want 12", item.Quantity)
	}

	path := "/api/items/" + itoa(item.ID) + "/movements"
	rec = s.do(http.MethodPost, path, `{"kind":"OUT","quantity":9,"reference":"SO-1001"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("movement: status = %d, body %s", rec.Code, rec.Body.String())
	}
	moved := decode[app.MovementResult](t, rec)
	if moved.Item.Quantity != 3 {
		t.Errorf("quantity = %d, want 3", moved.Item.Quantity)
	}
	if moved.Movement.Actor != "dana" {
		t.Errorf("actor = %q, want the token subject", moved.Movement.Actor)
	}

	rec = s.do(http.MethodGet, "/api/reports/low-stock", "")
	low := decode[app.ItemListResult](t, rec)
	if len(low.Items) != 1 || low.Items[0].ID != item.ID {
		t.Errorf("low stock = %+v", low.Items)
	}

	rec = s.do(http.MethodGet, "/api/movements/recent?limit=1", "")
	recent := decode[app.MovementListResult](t, rec)
	if len(recent.Movements) != 1 || recent.Movements[0].Reference != "SO-1001" {
		t.Errorf("recent = %+v", recent.Movements)
	}

	rec = s.do(http.MethodGet, "/api/reports/inventory-value", "")
	value := decode[app.InventoryValueResult](t, rec)
	if !value.TotalValue.Equal(decimal.RequireFromString("9.60")) {
		t.Errorf("total = %s, want 9.60", value.TotalValue)
	}

	rec = s.do(http.MethodGet, "/api/items/"+itoa(item.ID)+"/reconcile", "")
	recon := decode[app.ReconcileResult](t, rec)
	if recon.Drifted != 0 || len(recon.Reports) != 1 || recon.Reports[0].MovementCount != 2 {
		t.Errorf("reconcile = %+v", recon)
	}

	rec = s.do(http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Errorf("dashboard: status = %d", rec.Code)
	}
	dash := decode[core.DashboardSummary](t, rec)
	if dash.ActiveItemCount != 1 || dash.LowStockCount != 1 {
		t.Errorf("dashboard = %+v", dash)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/items", `{"name":"Nail","unit_price":"0.05"}`)
	item := decode[core.Item](t, rec)
	movements := "/api/items/" + itoa(item.ID) + "/movements"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown item", http.MethodGet, "/api/items/999", "", http.StatusNotFound, "NOT_FOUND"},
		{"movement on unknown item", http.MethodPost, "/api/items/999/movements", `{"kind":"IN","quantity":1}`, http.StatusNotFound, "NOT_FOUND"},
		{"zero quantity", http.MethodPost, movements, `{"kind":"IN","quantity":0}`, http.StatusUnprocessableEntity, "INVALID_MAGNITUDE"},
		{"negative quantity", http.MethodPost, movements, `{"kind":"OUT","quantity":-5}`, http.StatusUnprocessableEntity, "INVALID_MAGNITUDE"},
		{"unknown kind", http.MethodPost, movements, `{"kind":"LOAN","quantity":1}`, http.StatusUnprocessableEntity, "INVALID_KIND"},
		{"bad price", http.MethodPost, "/api/items", `{"name":"x","unit_price":"1.999"}`, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"bad id", http.MethodGet, "/api/items/abc", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"bad json", http.MethodPost, movements, `{"kind":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad limit", http.MethodGet, "/api/movements/recent?limit=ten", "", http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			body := decode[errorBody](t, rec)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if body.Error == "" || body.RequestID == "" {
				t.Errorf("incomplete error body %+v", body)
			}
		})
	}

	rec = s.do(http.MethodGet, "/api/items/"+itoa(item.ID)+"/movements", "")
	history := decode[app.MovementListResult](t, rec)
	if len(history.Movements) != 0 {
		t.Errorf("rejected requests created %d movements", len(history.Movements))
	}
}

func TestDeactivateItem(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/items", `{"name":"Old stock","unit_price":"1.00","opening_quantity":2}`)
	item := decode[core.Item](t, rec)

	rec = s.do(http.MethodDelete, "/api/items/"+itoa(item.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[core.Item](t, rec); got.IsActive {
		t.Errorf("item still active after DELETE")
	}

	rec = s.do(http.MethodGet, "/api/items", "")
	if list := decode[app.ItemListResult](t, rec); len(list.Items) != 0 {
		t.Errorf("deactivated item still listed")
	}
	rec = s.do(http.MethodGet, "/api/items?include_inactive=true", "")
	if list := decode[app.ItemListResult](t, rec); len(list.Items) != 1 {
		t.Errorf("include_inactive should list the item")
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/items", nil)
	req.Header.Set("Origin", "http://ui.test")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://ui.test" {
		t.Errorf("allowed origin not echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("unlisted origin should not get CORS headers")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
