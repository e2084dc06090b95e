package web

import (
	"net/http"

	"inventory-ledger/internal/app"
)

// apiListItems handles GET /api/items?include_inactive=&low_stock=&q=.
func (h *Handler) apiListItems(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListItems(r.Context(), app.ListItemsRequest{
		IncludeInactive: queryBool(r, "include_inactive"),
		LowStockOnly:    queryBool(r, "low_stock"),
		Search:          r.URL.Query().Get("q"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRegisterItem handles POST /api/items.
func (h *Handler) apiRegisterItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name             string `json:"name"`
		UnitPrice        string `json:"unit_price"`
		ReorderThreshold *int64 `json:"reorder_threshold"`
		OpeningQuantity  int64  `json:"opening_quantity"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.RegisterItem(r.Context(), app.RegisterItemRequest{
		Name:             body.Name,
		UnitPrice:        body.UnitPrice,
		ReorderThreshold: body.ReorderThreshold,
		OpeningQuantity:  body.OpeningQuantity,
		Actor:            actorFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Item)
}

// apiGetItem handles GET /api/items/{id}.
func (h *Handler) apiGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Item)
}

// apiDeactivateItem handles DELETE /api/items/{id}. The item is soft-deleted.
func (h *Handler) apiDeactivateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.DeactivateItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Item)
}

// apiItemHistory handles GET /api/items/{id}/movements?limit=.
func (h *Handler) apiItemHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", app.DefaultHistoryLimit)
	if !ok {
		return
	}
	result, err := h.svc.GetItemHistory(r.Context(), id, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordMovement handles POST /api/items/{id}/movements.
func (h *Handler) apiRecordMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var body struct {
		Kind      string `json:"kind"`
		Quantity  int64  `json:"quantity"`
		Reference string `json:"reference"`
		Notes     string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.RecordMovement(r.Context(), app.RecordMovementRequest{
		ItemID:    id,
		Kind:      body.Kind,
		Quantity:  body.Quantity,
		Reference: body.Reference,
		Notes:     body.Notes,
		Actor:     actorFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiReconcileItem handles GET /api/items/{id}/reconcile.
func (h *Handler) apiReconcileItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ReconcileItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
