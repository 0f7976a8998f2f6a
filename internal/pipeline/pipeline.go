// Package pipeline runs a claimed job: generate, store, record, and write the
// result through to the subject record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"imagequeue/internal/clock"
	"imagequeue/internal/domain"
	"imagequeue/internal/providers/image"
	"imagequeue/internal/storage"
)

// ErrClaimLost is returned when the job left processing while it ran, for
// example after being reclassified as a zombie.
var ErrClaimLost = errors.New("job is no longer processing")

// Result separates the job outcome from the auxiliary write-through.
type Result struct {
	Job             *domain.Job
	WriteThroughErr error
}

// Options wires a Pipeline. Subjects may be nil.
type Options struct {
	Jobs              domain.JobRepository
	Generator         image.Generator
	Artifacts         storage.ArtifactStore
	Subjects          domain.SubjectStore
	SubjectImageField string
	HeartbeatInterval time.Duration
	Clock             clock.Clock
	Logger            zerolog.Logger
}

type Pipeline struct {
	jobs         domain.JobRepository
	generator    image.Generator
	artifacts    storage.ArtifactStore
	subjects     domain.SubjectStore
	subjectField string
	heartbeat    time.Duration
	clock        clock.Clock
	logger       zerolog.Logger
}

func New(opts Options) *Pipeline {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if strings.TrimSpace(opts.SubjectImageField) == "" {
		opts.SubjectImageField = "image_url"
	}
	return &Pipeline{
		jobs:         opts.Jobs,
		generator:    opts.Generator,
		artifacts:    opts.Artifacts,
		subjects:     opts.Subjects,
		subjectField: opts.SubjectImageField,
		heartbeat:    opts.HeartbeatInterval,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
}

// Execute runs a job the caller has claimed. Generation or storage failures
// mark the job failed and are returned. A failed write-through only shows up
// in Result.WriteThroughErr.
func (p *Pipeline) Execute(ctx context.Context, job *domain.Job) (*Result, error) {
	log := p.logger.With().Str("job_id", job.ID).Logger()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.keepAlive(hbCtx, log, job.ID)
	}()

	url, err := p.produce(ctx, job)
	stopHeartbeat()
	wg.Wait()

	// Record the outcome even if the caller's context was cancelled.
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		log.Error().Err(err).Msg("job failed")
		if ferr := p.finish(writeCtx, job.ID, domain.JobStatusFailed, domain.WithError(err.Error())); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record job failure")
		}
		return nil, err
	}

	if err := p.finish(writeCtx, job.ID, domain.JobStatusCompleted, domain.WithResult(url)); err != nil {
		log.Error().Err(err).Str("result_ref", url).Msg("failed to record job completion")
		return nil, err
	}
	completed, err := p.jobs.GetByID(writeCtx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("reload completed job: %w", err)
	}
	log.Info().Str("result_ref", url).Msg("job completed")

	result := &Result{Job: completed}
	if job.SubjectRef != "" && p.subjects != nil {
		if err := p.subjects.SetField(writeCtx, job.SubjectRef, p.subjectField, url); err != nil {
			log.Warn().Err(err).Str("subject_ref", job.SubjectRef).Msg("subject write-through failed")
			result.WriteThroughErr = err
		}
	}
	return result, nil
}

func (p *Pipeline) produce(ctx context.Context, job *domain.Job) (string, error) {
	data, err := p.generator.Generate(ctx, job.Prompt)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	url, err := p.artifacts.Put(ctx, data, storage.ArtifactPath(job.SubjectRef, job.ID, p.clock.Now()))
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return url, nil
}

// finish moves the job out of processing. The write is conditional on the
// job still being processing so a reclassified zombie is never revived.
func (p *Pipeline) finish(ctx context.Context, jobID string, status domain.JobStatus, fields domain.JobFields) error {
	for attempt := 0; attempt < 3; attempt++ {
		current, err := p.jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if current.Status != domain.JobStatusProcessing {
			return fmt.Errorf("%w: job %s is %s", ErrClaimLost, jobID, current.Status)
		}
		won, err := p.jobs.TransitionStatus(ctx, jobID, domain.JobStatusProcessing, current.Version, status, fields)
		if err != nil {
			return err
		}
		if won {
			return nil
		}
	}
	return fmt.Errorf("%w: job %s kept changing", ErrClaimLost, jobID)
}

func (p *Pipeline) keepAlive(ctx context.Context, log zerolog.Logger, jobID string) {
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alive, err := p.jobs.Heartbeat(ctx, jobID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Msg("heartbeat failed")
				continue
			}
			if !alive {
				log.Warn().Msg("heartbeat found job no longer processing")
				return
			}
		}
	}
}
