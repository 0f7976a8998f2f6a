// Package jobs is the entry point used by the HTTP API and the admin CLI. It
// creates jobs, drives them through the coordinator and pipeline, reports
// their status and cleans up old records.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imagequeue/internal/clock"
	"imagequeue/internal/coordinator"
	"imagequeue/internal/domain"
	"imagequeue/internal/pipeline"
)

// MaxPromptLength bounds the prompt accepted by CreateJob, in characters.
const MaxPromptLength = 4000

// Claimer waits for a job's turn.
type Claimer interface {
	AwaitTurn(ctx context.Context, jobID string, opts *coordinator.Options) (*coordinator.Turn, error)
}

// Executor runs a claimed job.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) (*pipeline.Result, error)
}

// CreateJobInput carries the producer's request.
type CreateJobInput struct {
	SubjectRef string
	OwnerRef   string
	Prompt     string
}

// Service coordinates job creation, processing and reporting.
type Service struct {
	jobs     domain.JobRepository
	claimer  Claimer
	executor Executor
	clock    clock.Clock
	logger   zerolog.Logger

	inflight sync.WaitGroup
}

func NewService(jobs domain.JobRepository, claimer Claimer, executor Executor, clk clock.Clock, logger zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		jobs:     jobs,
		claimer:  claimer,
		executor: executor,
		clock:    clk,
		logger:   logger,
	}
}

// CreateJob validates the input and stores a new pending job.
func (s *Service) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.SubjectRef = strings.TrimSpace(in.SubjectRef)
	in.OwnerRef = strings.TrimSpace(in.OwnerRef)
	switch {
	case in.Prompt == "":
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	case utf8.RuneCountInString(in.Prompt) > MaxPromptLength:
		return nil, fmt.Errorf("%w: prompt exceeds %d characters", domain.ErrValidation, MaxPromptLength)
	case in.SubjectRef == "" && in.OwnerRef == "":
		return nil, fmt.Errorf("%w: subject_ref or owner_ref is required", domain.ErrValidation)
	}

	job := &domain.Job{
		ID:         uuid.NewString(),
		SubjectRef: in.SubjectRef,
		OwnerRef:   in.OwnerRef,
		Prompt:     in.Prompt,
		Status:     domain.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Str("subject_ref", job.SubjectRef).
		Str("owner_ref", job.OwnerRef).
		Msg("job created")
	return job, nil
}

// TriggerProcessing starts Process in the background and returns at once.
// The run is detached from any request context; redundant triggers for the
// same job are harmless. Use Wait to drain in-flight runs.
func (s *Service) TriggerProcessing(jobID string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		log := s.logger.With().Str("job_id", jobID).Logger()
		view, err := s.Process(context.Background(), jobID)
		switch {
		case errors.Is(err, domain.ErrTimeout):
			log.Info().Msg("background processing timed out; job stays pending")
		case err != nil:
			log.Error().Err(err).Msg("background processing failed")
		default:
			log.Debug().Str("status", string(view.Status)).Msg("background processing finished")
		}
	}()
}

// Wait blocks until every triggered run has returned or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process waits for the job's turn and executes it. A job that already
// finished is reported as is.
func (s *Service) Process(ctx context.Context, jobID string) (*domain.StatusView, error) {
	turn, err := s.claimer.AwaitTurn(ctx, jobID, nil)
	if err != nil {
		return nil, err
	}
	if !turn.Claimed {
		return domain.NewStatusView(turn.Job), nil
	}
	res, err := s.executor.Execute(ctx, turn.Job)
	if err != nil {
		return nil, err
	}
	return domain.NewStatusView(res.Job), nil
}

// GetStatus reports the job and, while pending, its queue position.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*domain.StatusView, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	view := domain.NewStatusView(job)
	if job.Status == domain.JobStatusPending {
		ahead, err := s.jobs.CountPendingBefore(ctx, job.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("count pending jobs: %w", err)
		}
		pos := ahead + 1
		view.QueuePosition = &pos
	}
	return view, nil
}

// ClearQueue fails every pending job. Processing jobs are left alone.
func (s *Service) ClearQueue(ctx context.Context) (int, error) {
	n, err := s.jobs.FailAllPending(ctx, domain.ClearedError)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	s.logger.Warn().Int("jobs", n).Msg("pending queue cleared")
	return n, nil
}

// Purge deletes every job created more than ttl ago, whatever its status.
func (s *Service) Purge(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", domain.ErrValidation)
	}
	cutoff := s.clock.Now().Add(-ttl)
	n, err := s.jobs.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	s.logger.Info().Int("jobs", n).Time("cutoff", cutoff).Msg("old jobs purged")
	return n, nil
}
