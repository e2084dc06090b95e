package web

import (
	"net/http"
)

const defaultRecentLimit = 20

// apiRecentMovements handles GET /api/movements/recent?limit=.
func (h *Handler) apiRecentMovements(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultRecentLimit)
	if !ok {
		return
	}
	result, err := h.svc.GetRecentMovements(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiLowStock handles GET /api/reports/low-stock.
func (h *Handler) apiLowStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLowStock(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiInventoryValue handles GET /api/reports/inventory-value.
func (h *Handler) apiInventoryValue(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetInventoryValue(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiReconcileAll handles GET /api/reports/reconcile.
func (h *Handler) apiReconcileAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReconcileAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDashboard handles GET /api/dashboard.
func (h *Handler) apiDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetDashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}
