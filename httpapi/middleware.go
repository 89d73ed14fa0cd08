package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chatinvoice/apperror"
	"chatinvoice/gatewayauth"
	"chatinvoice/storage"
)

// statusRecorder captures the status code written so observabilityMiddleware
// can label metrics after the handler runs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		duration := time.Since(start).Seconds()

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		statusClass := strconv.Itoa(rec.status/100) + "xx"
		s.metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, statusClass).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(duration)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key, X-Correlation-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) bodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves a Principal from the request and stores it on the
// context, failing the request with Unauthenticated otherwise.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := gatewayauth.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOrg enforces the org guard: absence of organizationId -> Forbidden.
func (s *Server) requireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := gatewayauth.FromContext(r.Context())
		if err := gatewayauth.RequireOrg(principal); err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the tier-based token-bucket limiter, resolving the
// organization's tier from storage and falling back to the free tier on a
// DB failure (fail closed toward the cheaper quota).
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := gatewayauth.FromContext(r.Context())
		tier := storage.TierFree
		if org, err := s.store.GetOrganization(r.Context(), principal.OrganizationID); err == nil {
			tier = org.Tier
		}
		readOnly := r.Method == http.MethodGet
		if !s.limiter.Allow(principal.OrganizationID, tier, readOnly) {
			s.metrics.RateLimitRejectedTotal.WithLabelValues(string(tier)).Inc()
			s.writeError(w, r, apperror.New(apperror.RateLimited, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth is a lighter-weight gate for endpoints any authenticated
// caller may use without requiring organization scoping (e.g. queue
// health).
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := gatewayauth.WithPrincipal(r.Context(), principal)
		handler(w, r.WithContext(ctx))
	}
}
