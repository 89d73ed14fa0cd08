package redact

import (
	"strings"
	"testing"
)

func TestIsSensitiveKeyNormalizesCaseAndSeparators(t *testing.T) {
	for _, key := range []string{"Customer-Name", "customer_name", "CUSTOMERNAME"} {
		if !IsSensitiveKey(key) {
			t.Errorf("expected %q to be treated as sensitive", key)
		}
	}
	if IsSensitiveKey("productName") {
		t.Error("productName should not be flagged as sensitive")
	}
}

func TestScanAndMaskRedactsEmailAndGST(t *testing.T) {
	out := ScanAndMask("contact asha@example.com, GSTIN 29ABCDE1234F1Z5")
	if !strings.Contains(out, "[EMAIL REDACTED]") {
		t.Fatalf("expected email-specific token, got %q", out)
	}
	if !strings.Contains(out, "[GST REDACTED]") {
		t.Fatalf("expected GST-specific token, got %q", out)
	}
	if ContainsPII(out) {
		t.Fatal("expected no remaining PII after masking")
	}
}

func TestScanAndMaskRedactsIndianPhoneNumber(t *testing.T) {
	out := ScanAndMask("call me at +91 98765 43210")
	if !strings.Contains(out, PhoneRedactedValue) {
		t.Fatalf("expected phone number to be redacted, got %q", out)
	}
}

func TestScanAndMaskLeavesUnrelatedTenDigitNumberAlone(t *testing.T) {
	out := ScanAndMask("order total 1234567890 units shipped")
	if strings.Contains(out, PhoneRedactedValue) {
		t.Fatalf("expected non-phone ten-digit run left intact, got %q", out)
	}
}

func TestTraverseMasksNestedSensitiveKeysWithoutMutatingInput(t *testing.T) {
	input := map[string]any{
		"customerName": "Asha Rao",
		"items": []any{
			map[string]any{"productName": "Rice", "notes": "deliver to asha@example.com"},
		},
	}
	out := Traverse(input).(map[string]any)
	if out["customerName"] != RedactedValue {
		t.Fatalf("expected customerName masked, got %v", out["customerName"])
	}
	if input["customerName"] != "Asha Rao" {
		t.Fatal("expected input left unmutated")
	}
	items := out["items"].([]any)
	item := items[0].(map[string]any)
	if item["productName"] != "Rice" {
		t.Fatal("expected non-sensitive field left intact")
	}
	if item["notes"] == "deliver to asha@example.com" {
		t.Fatal("expected embedded email redacted from free-text field")
	}
}
