package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/dispatchd/internal/domain"
	"github.com/fairyhunter13/dispatchd/internal/usecase"
)

// maxBodyBytes caps request bodies; job payloads are small JSON documents.
const maxBodyBytes = 1 << 20

// Server aggregates handler dependencies.
type Server struct {
	Submit  usecase.SubmitService
	Status  usecase.StatusService
	Webhook usecase.WebhookService
	Health  usecase.HealthService
	Stats   usecase.StatsService

	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(submit usecase.SubmitService, status usecase.StatusService, webhook usecase.WebhookService, health usecase.HealthService, stats usecase.StatsService, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Submit: submit, Status: status, Webhook: webhook, Health: health, Stats: stats, DBCheck: dbCheck, RedisCheck: redisCheck}
}

// SubmitHandler accepts an arbitrary JSON object and queues it for dispatch.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: body read: %v", domain.ErrValidation, err))
			return
		}
		requestID, err := s.Submit.Submit(r.Context(), body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"request_id": requestID})
	}
}

type jobStatusResponse struct {
	Status    domain.JobStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Result    json.RawMessage  `json:"result,omitempty"`
	Error     *string          `json:"error,omitempty"`
}

// StatusHandler returns a job's current status and, once terminal, its result
// or error.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "requestId")
		job, err := s.Status.GetJobStatus(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jobStatusResponse{
			Status:    job.Status,
			CreatedAt: job.CreatedAt.UTC(),
			UpdatedAt: job.UpdatedAt.UTC(),
			Result:    job.Result,
			Error:     job.Error,
		})
	}
}

// WebhookHandler ingests an async vendor's terminal callback. An unknown id
// answers 400, not 5xx: the vendor cannot fix it and must stop retrying.
func (s *Server) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendor := chi.URLParam(r, "vendor")
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: body read: %v", domain.ErrValidation, err))
			return
		}
		if err := s.Webhook.HandleWebhook(r.Context(), vendor, body); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown requestId"})
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// HealthHandler reports component health. The response is always 200;
// degradation is carried in the body so a sick vendor does not read as an
// API outage.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Health.Check(r.Context()))
	}
}

// StatsHandler serves aggregate job counts, or one vendor's recent jobs when
// the vendor query parameter is present.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendor := r.URL.Query().Get("vendor")
		if vendor == "" {
			stats, err := s.Stats.Overview(r.Context())
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
			return
		}
		if vr := ValidateVendorName(vendor); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: %s", domain.ErrValidation, vr.Errors[0].Message))
			return
		}
		limit, vr := ValidateLimit(r.URL.Query().Get("limit"))
		if !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: %s", domain.ErrValidation, vr.Errors[0].Message))
			return
		}
		jobs, err := s.Stats.VendorJobs(r.Context(), vendor, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"vendor": vendor, "jobs": jobs})
	}
}

// ReadyzHandler returns a readiness handler that probes the store and Redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
