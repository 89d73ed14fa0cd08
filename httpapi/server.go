// Package httpapi wires the chi router, request-path middleware, and
// handlers that make up the service's HTTP surface. Handlers perform only
// adaptation (parse -> storage/LLM -> shape -> status code); errors are
// returned and mapped centrally by writeError.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatinvoice/correlation"
	"chatinvoice/gatewayauth"
	"chatinvoice/invoice"
	"chatinvoice/llm"
	"chatinvoice/objectstore"
	"chatinvoice/observability"
	"chatinvoice/queue"
	"chatinvoice/ratelimit"
	"chatinvoice/redact"
	"chatinvoice/storage"
)

// maxRequestBody bounds request bodies on a publicly reachable extraction
// endpoint: an unbounded reader here is an open door.
const maxRequestBody = 1 << 20 // 1 MiB

// Server holds every dependency the HTTP surface needs; it owns no
// business logic beyond adaptation.
type Server struct {
	store          storage.Store
	llmClient      *llm.Client
	invoiceEngine  *invoice.Engine
	extractionQ    *queue.Queue
	webhookQ       *queue.Queue
	jobStatus      *queue.StatusStore
	objectStore    *objectstore.Store
	authenticator  *gatewayauth.Authenticator
	permissions    *gatewayauth.PermissionResolver
	limiter        *ratelimit.Limiter
	metrics        *observability.Metrics
	logger         *slog.Logger
	environment    string
}

// Deps bundles Server's constructor dependencies.
type Deps struct {
	Store         storage.Store
	LLMClient     *llm.Client
	InvoiceEngine *invoice.Engine
	ExtractionQ   *queue.Queue
	WebhookQ      *queue.Queue
	JobStatus     *queue.StatusStore
	ObjectStore   *objectstore.Store
	Authenticator *gatewayauth.Authenticator
	Permissions   *gatewayauth.PermissionResolver
	Limiter       *ratelimit.Limiter
	Metrics       *observability.Metrics
	Logger        *slog.Logger
	Environment   string
}

// NewServer constructs a Server from deps.
func NewServer(deps Deps) *Server {
	return &Server{
		store:         deps.Store,
		llmClient:     deps.LLMClient,
		invoiceEngine: deps.InvoiceEngine,
		extractionQ:   deps.ExtractionQ,
		webhookQ:      deps.WebhookQ,
		jobStatus:     deps.JobStatus,
		objectStore:   deps.ObjectStore,
		authenticator: deps.Authenticator,
		permissions:   deps.Permissions,
		limiter:       deps.Limiter,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		environment:   deps.Environment,
	}
}

// Router assembles the chi router with every middleware and route this
// service exposes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(correlation.Middleware)
	r.Use(s.observabilityMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/queue/health", s.withAuth(s.handleQueueHealth))
	r.Get("/api/jobs/{id}", s.withAuth(s.handleJobStatus))

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.requireOrg)
		r.Use(s.rateLimit)
		r.Use(s.bodyLimit)

		r.Get("/api/stats", s.handleStats)
		r.Get("/api/orders", s.handleListOrders)
		r.Get("/api/orders/{id}", s.handleGetOrder)
		r.Post("/api/extract", s.handleExtractSingle)
		r.Post("/api/extract-order", s.handleExtractChatLog)
		r.Post("/api/generate-invoice", s.handleGenerateInvoice)
		r.Get("/api/orders/{id}/download", s.handleDownloadInvoice)
		r.Post("/api/async/extract", s.handleAsyncExtractSingle)
		r.Post("/api/async/extract-order", s.handleAsyncExtractChatLog)
		r.Patch("/api/orders/{id}", s.handleUpdateStatus)
		r.Patch("/api/orders/{id}/edit", s.handleEditOrder)
		r.Delete("/api/orders/{id}", s.handleDeleteOrder)
		r.Get("/api/admin/dlq", s.handleListDLQ)
		r.Post("/api/admin/dlq/{jobId}/retry", s.handleRetryDLQOne)
		r.Post("/api/admin/dlq/retry-all", s.handleRetryDLQAll)
	})

	return r
}

// maybeRedact applies the PII redactor to body unless principal holds
// view_pii, per §4.8's permission gate.
func (s *Server) maybeRedact(r *http.Request, orgID string, body []byte) []byte {
	principal, ok := gatewayauth.FromContext(r.Context())
	if ok && principal.Role != "" {
		perms := s.permissions.Resolve(r.Context(), orgID, principal.Role)
		if gatewayauth.HasPermission(perms, storage.PermViewPII) {
			return body
		}
	}
	redacted, err := redact.RedactJSON(body)
	if err != nil {
		// Fail closed: if redaction itself errors, better to return
		// nothing meaningful than leak PII.
		return []byte(`{}`)
	}
	return redacted
}
