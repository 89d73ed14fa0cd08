package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// sensitiveKeys follows the PII redactor's key-based mask list (see package
// redact) so a stray log.Info("...", "phone", customer.Phone) cannot leak a
// raw value even outside the HTTP response path. Keys are matched after
// lowercasing only, without the separator stripping package redact applies,
// so both the underscored and the joined spelling of a key are listed.
var sensitiveKeys = map[string]struct{}{
	"customer_name":    {},
	"customername":     {},
	"phone":            {},
	"phone_number":     {},
	"phonenumber":      {},
	"email":            {},
	"address":          {},
	"deliveryaddress":  {},
	"delivery_address": {},
	"gst_number":       {},
	"gstnumber":        {},
	"aadhaar":          {},
	"pan":              {},
	"cvv":              {},
	"password":         {},
	"secret":           {},
	"api_key":          {},
	"apikey":           {},
	"token":            {},
	"authorization":    {},
}

// IsSensitive reports whether the provided key must be redacted before logging.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := sensitiveKeys[normalized]
	return ok
}

// SensitiveKeys returns a sorted copy of the log keys that are always redacted.
func SensitiveKeys() []string {
	keys := make([]string, 0, len(sensitiveKeys))
	for key := range sensitiveKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the canonical redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts the supplied value when the key is
// one of the sensitive field names. The original key casing is preserved.
func MaskField(key, value string) slog.Attr {
	if IsSensitive(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

// MaskAttr is the slog.HandlerOptions.ReplaceAttr hook applied at serialization
// time: any attribute whose key matches the sensitive set is masked regardless
// of call site, so a forgetful log call never leaks PII to disk.
func MaskAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	if IsSensitive(attr.Key) {
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	}
	return attr
}
