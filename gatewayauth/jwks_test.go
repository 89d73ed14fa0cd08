package gatewayauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveKeyFetchesAndCachesJWKS(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(jwksDocument{
			Keys: []jwk{{Kty: "RSA", Kid: "key-1", N: "AQAB", E: "AQAB"}},
		})
	}))
	defer srv.Close()

	client := NewJWKSClient(srv.URL)
	_, err := client.ResolveKey("key-1")
	require.NoError(t, err)
	_, err = client.ResolveKey("key-1")
	require.NoError(t, err)
	require.Equal(t, 1, fetches, "expected exactly one fetch while cache is warm")
}

func TestResolveKeyReturnsErrorForUnknownKid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwksDocument{
			Keys: []jwk{{Kty: "RSA", Kid: "key-1", N: "AQAB", E: "AQAB"}},
		})
	}))
	defer srv.Close()

	client := NewJWKSClient(srv.URL)
	_, err := client.ResolveKey("missing")
	require.Error(t, err)
}
