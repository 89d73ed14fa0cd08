package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatinvoice/apperror"
)

func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID      string `json:"orderId"`
		IsInterstate bool   `json:"isInterstate"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.OrderID == "" {
		s.writeError(w, r, invalidField("orderId"))
		return
	}

	order, err := s.store.GenerateAndAttachInvoice(r.Context(), s.orgID(r), body.OrderID, body.IsInterstate, s.invoiceEngine)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	downloadURL, err := s.objectStore.SignedDownloadURL(order.Invoice.Number)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if org, orgErr := s.store.GetOrganization(r.Context(), s.orgID(r)); orgErr == nil {
		s.metrics.InvoiceGeneratedTotal.WithLabelValues(string(org.Tier)).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invoice":     order.Invoice,
		"downloadUrl": downloadURL,
	})
}

// handleDownloadInvoice verifies the org owns the order and that an
// invoice exists, then issues a short-TTL signed URL. The API never
// returns the direct blob URL to a caller that hasn't passed this check.
func (s *Server) handleDownloadInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := s.store.GetOrder(r.Context(), s.orgID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if order.Invoice == nil {
		s.writeError(w, r, apperror.NotFoundf("order %s has no invoice", id))
		return
	}

	url, err := s.objectStore.SignedDownloadURL(order.Invoice.Number)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
