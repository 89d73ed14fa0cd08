package httpapi

import (
	"net/http"

	"chatinvoice/apperror"
	"chatinvoice/correlation"
	"chatinvoice/llm"
	"chatinvoice/queue"
	"chatinvoice/storage"
)

type singleMessageRequest struct {
	Message    string `json:"message"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

type chatLogRequest struct {
	Messages   []storage.RawMessage `json:"messages"`
	WebhookURL string               `json:"webhookUrl,omitempty"`
}

func (s *Server) handleExtractSingle(w http.ResponseWriter, r *http.Request) {
	var body singleMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Message == "" {
		s.writeError(w, r, invalidField("message"))
		return
	}

	result, err := s.llmClient.ExtractSingleMessage(r.Context(), body.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := s.store.AddOrder(r.Context(), s.orgID(r), storage.NewOrderInput{
		CustomerName:    result.CustomerName,
		CustomerPhone:   result.CustomerPhone,
		DeliveryAddress: result.DeliveryAddress,
		Items:           llm.Coerce(result.Items),
		TotalAmount:     sumTotals(llm.Coerce(result.Items)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleExtractChatLog(w http.ResponseWriter, r *http.Request) {
	var body chatLogRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(body.Messages) == 0 {
		s.writeError(w, r, invalidField("messages"))
		return
	}

	result, err := s.llmClient.ExtractChatLog(r.Context(), body.Messages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := llm.Coerce(result.Items)
	order, err := s.store.AddChatOrder(r.Context(), s.orgID(r), storage.ChatOrderInput{
		NewOrderInput: storage.NewOrderInput{
			CustomerName:    result.CustomerName,
			CustomerPhone:   result.CustomerPhone,
			DeliveryAddress: result.DeliveryAddress,
			Items:           items,
			TotalAmount:     sumTotals(items),
		},
		Confidence:  llm.ClampConfidenceLabel(result.Confidence),
		RawMessages: body.Messages,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAsyncExtractSingle(w http.ResponseWriter, r *http.Request) {
	var body singleMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	jobID, err := s.extractionQ.Enqueue(r.Context(), queue.ExtractionPayload{
		OrganizationID: s.orgID(r),
		CorrelationID:  correlation.FromContext(r.Context()),
		ChatLog:        false,
		RawText:        body.Message,
		WebhookURL:     body.WebhookURL,
	}, queue.Options{Priority: true})
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.Internal, "enqueue extraction job", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":     jobID,
		"statusUrl": "/api/jobs/" + jobID,
	})
}

func (s *Server) handleAsyncExtractChatLog(w http.ResponseWriter, r *http.Request) {
	var body chatLogRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	lines := make([]string, 0, len(body.Messages))
	for _, m := range body.Messages {
		lines = append(lines, m.Sender+": "+m.Text)
	}
	jobID, err := s.extractionQ.Enqueue(r.Context(), queue.ExtractionPayload{
		OrganizationID:  s.orgID(r),
		CorrelationID:   correlation.FromContext(r.Context()),
		ChatLog:         true,
		RawMessageLines: lines,
		WebhookURL:      body.WebhookURL,
	}, queue.Options{})
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.Internal, "enqueue extraction job", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":     jobID,
		"statusUrl": "/api/jobs/" + jobID,
	})
}

func sumTotals(items []storage.OrderItem) float64 {
	var total float64
	for _, item := range items {
		if item.TotalPrice != nil {
			total += *item.TotalPrice
		}
	}
	return total
}
