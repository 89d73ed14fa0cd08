package redact

import "encoding/json"

// Traverse walks an arbitrary JSON-decoded value (from json.Unmarshal into
// any), returning a new value with every sensitive key masked and every
// string value scanned for embedded PII patterns. The input is never
// mutated in place: a fresh structure is returned so callers can't
// accidentally leak the unredacted original through a shared reference.
func Traverse(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if IsSensitiveKey(k) {
				out[k] = maskValue(child)
				continue
			}
			out[k] = Traverse(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Traverse(child)
		}
		return out
	case string:
		return ScanAndMask(val)
	default:
		return val
	}
}

func maskValue(v any) any {
	if s, ok := v.(string); ok && s != "" {
		return RedactedValue
	}
	return v
}

// RedactJSON unmarshals body, redacts it via Traverse, and re-marshals it.
// Used by the HTTP layer to redact an outbound response body for callers
// lacking the view_pii permission.
func RedactJSON(body []byte) ([]byte, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	return json.Marshal(Traverse(decoded))
}
