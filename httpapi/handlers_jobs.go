package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatinvoice/apperror"
)

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.jobStatus.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.Internal, "read job status", err))
		return
	}
	if status == nil {
		s.writeError(w, r, apperror.NotFoundf("job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleQueueHealth(w http.ResponseWriter, r *http.Request) {
	extractionDepth, err := s.extractionQ.Depth(r.Context())
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.UpstreamUnavail, "read extraction queue depth", err))
		return
	}
	webhookDepth, err := s.webhookQ.Depth(r.Context())
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.UpstreamUnavail, "read webhook queue depth", err))
		return
	}
	extractionFailed, _ := s.extractionQ.ListFailed(r.Context())
	webhookFailed, _ := s.webhookQ.ListFailed(r.Context())

	s.metrics.QueueDepth.WithLabelValues("extraction").Set(float64(extractionDepth))
	s.metrics.QueueDepth.WithLabelValues("webhook").Set(float64(webhookDepth))

	writeJSON(w, http.StatusOK, map[string]any{
		"extraction": map[string]int64{"waiting": extractionDepth, "failed": int64(len(extractionFailed))},
		"webhook":    map[string]int64{"waiting": webhookDepth, "failed": int64(len(webhookFailed))},
	})
}

func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	failed, err := s.extractionQ.ListFailed(r.Context())
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.Internal, "list dead-lettered extraction jobs", err))
		return
	}
	writeJSON(w, http.StatusOK, failed)
}

func (s *Server) handleRetryDLQOne(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := s.extractionQ.RetryOne(r.Context(), jobID); err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.NotFound, "retry dead-lettered job", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryDLQAll(w http.ResponseWriter, r *http.Request) {
	moved, err := s.extractionQ.RetryAll(r.Context())
	if err != nil {
		s.writeError(w, r, apperror.Wrap(apperror.Internal, "retry all dead-lettered jobs", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"retried": moved})
}
