package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chatinvoice/apperror"
)

// editOrderAllowedFields is the strict allow-list for PATCH
// /api/orders/:id/edit; any other top-level key fails validation, per
// §4.10's strict-mode requirement and Design Note "Strict update".
var editOrderAllowedFields = map[string]bool{
	"customerName":    true,
	"customerPhone":   true,
	"deliveryAddress": true,
	"items":           true,
}

// decodeStrict decodes body into v after verifying every top-level JSON
// key is on allowed; unknown fields are rejected rather than silently
// ignored.
func decodeStrict(r *http.Request, allowed map[string]bool, v any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return apperror.Wrap(apperror.Validation, "read request body", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return apperror.Wrap(apperror.Validation, "invalid JSON body", err)
	}
	var unknown []string
	for key := range fields {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return apperror.New(apperror.Validation, "unexpected fields in request body").WithErrors(unknown...)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperror.Wrap(apperror.Validation, "invalid request body", err)
	}
	return nil
}

// decodeJSON decodes body into v without a field allow-list.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Wrap(apperror.Validation, "invalid request body", err)
	}
	return nil
}

func invalidField(field string) error {
	return apperror.New(apperror.Validation, fmt.Sprintf("invalid or missing field %q", field))
}
