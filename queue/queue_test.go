package queue

import "testing"

func TestKeyNamingIsPerKindAndPurpose(t *testing.T) {
	if keyFor(KindExtraction) == keyFor(KindWebhook) {
		t.Fatal("expected distinct queue keys per kind")
	}
	if keyFor(KindExtraction) == deadLetterKeyFor(KindExtraction) {
		t.Fatal("expected distinct dead-letter key")
	}
	if keyFor(KindExtraction) == processingKeyFor(KindExtraction) {
		t.Fatal("expected distinct processing key")
	}
}

func TestDefaultMaxRetriesIsThree(t *testing.T) {
	if DefaultMaxRetries != 3 {
		t.Fatalf("expected default max retries 3, got %d", DefaultMaxRetries)
	}
}
