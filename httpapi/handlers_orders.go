package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatinvoice/apperror"
	"chatinvoice/gatewayauth"
	"chatinvoice/storage"
)

func (s *Server) orgID(r *http.Request) string {
	principal, _ := gatewayauth.FromContext(r.Context())
	return principal.OrganizationID
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Limit:  parseIntQuery(r, "limit", 0),
		Offset: parseIntQuery(r, "offset", 0),
	}
	orders, err := s.store.GetOrders(r.Context(), s.orgID(r), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRedacted(w, r, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := s.store.GetOrder(r.Context(), s.orgID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRedacted(w, r, http.StatusOK, order)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status storage.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	order, err := s.store.UpdateOrderStatus(r.Context(), s.orgID(r), id, body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRedacted(w, r, http.StatusOK, order)
}

func (s *Server) handleEditOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		CustomerName    *string             `json:"customerName"`
		CustomerPhone   *string             `json:"customerPhone"`
		DeliveryAddress *string             `json:"deliveryAddress"`
		Items           []storage.OrderItem `json:"items"`
	}
	if err := decodeStrict(r, editOrderAllowedFields, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	update := storage.OrderUpdate{
		CustomerName:    body.CustomerName,
		CustomerPhone:   body.CustomerPhone,
		DeliveryAddress: body.DeliveryAddress,
		Items:           body.Items,
	}
	order, err := s.store.UpdateChatOrderDetails(r.Context(), s.orgID(r), id, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRedacted(w, r, http.StatusOK, order)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteOrder(r.Context(), s.orgID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(r)
	total, err := s.store.GetChatOrdersCount(r.Context(), orgID, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pending, err := s.store.GetChatOrdersCount(r.Context(), orgID, storage.StatusPending)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	confirmed, err := s.store.GetChatOrdersCount(r.Context(), orgID, storage.StatusConfirmed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	revenue, err := s.store.GetTotalRevenue(r.Context(), orgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_orders":     total,
		"pending_orders":   pending,
		"confirmed_orders": confirmed,
		"total_revenue":    revenue,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{"db": "up", "llm": "up", "queue": "up"}

	if _, err := s.store.GetOrganization(r.Context(), "__healthcheck__"); err != nil && apperror.KindOf(err) != apperror.NotFound {
		checks["db"] = "down"
		status = http.StatusServiceUnavailable
	}
	if _, err := s.extractionQ.Depth(r.Context()); err != nil {
		checks["queue"] = "down"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{"status": statusLabel(status), "checks": checks})
}

func statusLabel(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// writeRedacted writes v as JSON, applying the PII redactor unless the
// caller holds view_pii.
func (s *Server) writeRedacted(w http.ResponseWriter, r *http.Request, status int, v any) {
	raw, err := marshalJSON(v)
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.Internal, "encode response", err))
		return
	}
	body := s.maybeRedact(r, s.orgID(r), raw)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
