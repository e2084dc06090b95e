package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"inventory-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	log       *zap.Logger
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log *zap.Logger, allowedOrigins []string, jwtSecret string) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		log:       log.Named("web"),
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// ── Items ─────────────────────────────────────────────────────────────
		r.Get("/api/items", h.apiListItems)
		r.Post("/api/items", h.apiRegisterItem)
		r.Get("/api/items/{id}", h.apiGetItem)
		r.Delete("/api/items/{id}", h.apiDeactivateItem)
		r.Get("/api/items/{id}/movements", h.apiItemHistory)
		r.Post("/api/items/{id}/movements", h.apiRecordMovement)
		r.Get("/api/items/{id}/reconcile", h.apiReconcileItem)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/api/movements/recent", h.apiRecentMovements)
		r.Get("/api/reports/low-stock", h.apiLowStock)
		r.Get("/api/reports/inventory-value", h.apiInventoryValue)
		r.Get("/api/reports/reconcile", h.apiReconcileAll)
		r.Get("/api/dashboard", h.apiDashboard)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// itemID extracts the {id} URL parameter. Writes a 400 and returns false on failure.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "item id must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, name+" must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
