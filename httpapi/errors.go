package httpapi

import (
	"encoding/json"
	"net/http"

	"chatinvoice/apperror"
	"chatinvoice/correlation"
)

// errorBody is the uniform error response shape: {status, message, [errors]}.
type errorBody struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// writeError is the single terminal error handler: every handler returns
// an error instead of writing a response directly, and this function maps
// it to the uniform body and HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Wrap(apperror.Internal, "internal error", err)
	}

	s.logger.ErrorContext(r.Context(), "request failed",
		"correlationId", correlation.FromContext(r.Context()),
		"kind", appErr.Kind,
		"error", err,
	)

	body := errorBody{
		Status:  appErr.Kind.HTTPStatus(),
		Message: appErr.Message,
		Errors:  appErr.Errors,
	}
	if body.Status >= 500 && s.environment == "production" {
		body.Message = "an internal error occurred"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Status)
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode error body", "error", encodeErr)
	}
}

// writeJSON writes a 200 JSON response, or the given status when non-zero.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
