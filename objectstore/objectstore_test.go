package objectstore

import "testing"

func TestBlobNameForInvoiceIsDeterministic(t *testing.T) {
	a := BlobNameForInvoice("INV-2026-007")
	b := BlobNameForInvoice("INV-2026-007")
	if a != b {
		t.Fatal("expected deterministic blob naming for repeat calls")
	}
	if a != "invoice_INV-2026-007.pdf" {
		t.Fatalf("unexpected blob name: %q", a)
	}
}
