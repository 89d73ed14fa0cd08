// Package redact masks personally identifiable information in outbound
// response bodies: key-based masking for known sensitive field names, plus
// value-based pattern scanning for PII that shows up in free-text fields
// the key-based pass can't catch.
package redact

import (
	"regexp"
)

// RedactedValue replaces any detected PII value.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"customername": true, "customer_name": true,
	"phone": true, "phonenumber": true, "phone_number": true,
	"email": true,
	"address": true, "deliveryaddress": true, "delivery_address": true,
	"gstnumber": true, "gst_number": true,
	"aadhaar": true, "pan": true,
	"cvv": true, "password": true, "secret": true,
	"apikey": true, "api_key": true, "token": true, "authorization": true,
}

// IsSensitiveKey reports whether a JSON field name is treated as PII by
// name alone, regardless of its value's shape.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[normalize(key)]
}

func normalize(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r == '-' || r == ' ' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}

// valuePattern pairs a detector with the pattern-specific token it leaves
// behind, so a caller can tell what kind of PII was found without seeing
// the value itself.
type valuePattern struct {
	pattern *regexp.Regexp
	token   string
}

// Pattern-based scanners for PII embedded in otherwise-unflagged text
// fields (free-text notes, raw chat messages). Each carries its own
// replacement token rather than collapsing into one generic marker.
var valuePatterns = []valuePattern{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[EMAIL REDACTED]"},
	{regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`), "[CREDIT_CARD REDACTED]"},
	{regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`), "[AADHAAR REDACTED]"},
	{regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`), "[PAN REDACTED]"},
	{regexp.MustCompile(`\b\d{2}[A-Z]{5}\d{4}[A-Z][A-Z\d]Z[A-Z\d]\b`), "[GST REDACTED]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN REDACTED]"},
	{regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}\d{6}[A-D]\b`), "[NI REDACTED]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP REDACTED]"},
}

// PhoneRedactedValue replaces a phone number value-scanning confirms via
// semantic parsing, per the pattern-specific token requirement.
const PhoneRedactedValue = "[PHONE REDACTED]"

// ScanAndMask replaces every PII pattern match within value with its
// pattern-specific token, also checking semantically-valid phone numbers.
func ScanAndMask(value string) string {
	out := value
	for _, vp := range valuePatterns {
		out = vp.pattern.ReplaceAllString(out, vp.token)
	}
	return maskPhoneNumbers(out)
}

// ContainsPII reports whether value matches any known PII pattern, without
// modifying it.
func ContainsPII(value string) bool {
	for _, vp := range valuePatterns {
		if vp.pattern.MatchString(value) {
			return true
		}
	}
	return hasPhoneNumber(value)
}
