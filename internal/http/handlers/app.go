package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"imagequeue/internal/domain"
	"imagequeue/internal/jobs"
	"imagequeue/internal/middleware"
)

// JobService is the job API consumed by the handlers.
type JobService interface {
	CreateJob(ctx context.Context, in jobs.CreateJobInput) (*domain.Job, error)
	TriggerProcessing(jobID string)
	Process(ctx context.Context, jobID string) (*domain.StatusView, error)
	GetStatus(ctx context.Context, jobID string) (*domain.StatusView, error)
	ClearQueue(ctx context.Context) (int, error)
	Purge(ctx context.Context, ttl time.Duration) (int, error)
}

type App struct {
	Jobs      JobService
	Logger    zerolog.Logger
	Retention time.Duration
	// Ping reports backend health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

func NewApp(svc JobService, logger zerolog.Logger, retention time.Duration) *App {
	return &App{Jobs: svc, Logger: logger, Retention: retention}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps a service error onto its HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrTimeout):
		a.error(w, http.StatusGatewayTimeout, "timeout", "timed out waiting for a processing slot; the job is still queued")
	case errors.Is(err, domain.ErrRateLimited):
		a.error(w, http.StatusTooManyRequests, "rate_limited", "image provider is rate limiting requests")
	case errors.Is(err, domain.ErrExternalService):
		a.error(w, http.StatusBadGateway, "external_service", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	default:
		a.Logger.Error().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
