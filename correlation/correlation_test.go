package correlation

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromContextDefaultsToNoContext(t *testing.T) {
	if got := FromContext(nil); got != NoContext {
		t.Fatalf("expected %q, got %q", NoContext, got)
	}
}

func TestMiddlewarePropagatesHeaderID(t *testing.T) {
	var observed string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observed = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set(Header, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if observed != "req-123" {
		t.Fatalf("expected correlation id req-123, got %q", observed)
	}
	if echoed := res.Header().Get(Header); echoed != "req-123" {
		t.Fatalf("expected response header to echo req-123, got %q", echoed)
	}
}

func TestMiddlewareGeneratesIDWhenAbsent(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Header().Get(Header) == "" {
		t.Fatal("expected a generated correlation id to be echoed")
	}
}
