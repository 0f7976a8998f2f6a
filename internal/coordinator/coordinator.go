// Package coordinator decides when a job may run. At most one job is
// processing at a time, pending jobs are claimed strictly in creation order,
// and consecutive jobs are spaced apart to respect the provider's quota.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imagequeue/internal/clock"
	"imagequeue/internal/domain"
)

// Options tunes the claim loop. MaxWait and MinSpacing are honored as given:
// a zero MaxWait checks once and times out instead of waiting, and a zero
// MinSpacing disables spacing. ZombieTimeout and PollInterval must be
// positive; non-positive values fall back to the coordinator's own.
type Options struct {
	MaxWait       time.Duration
	ZombieTimeout time.Duration
	MinSpacing    time.Duration
	PollInterval  time.Duration
}

// DefaultOptions mirrors the production configuration.
var DefaultOptions = Options{
	MaxWait:       9 * time.Minute,
	ZombieTimeout: 5 * time.Minute,
	MinSpacing:    10 * time.Second,
	PollInterval:  5 * time.Second,
}

func (o Options) resolve(base Options) Options {
	if o.MaxWait < 0 {
		o.MaxWait = 0
	}
	if o.MinSpacing < 0 {
		o.MinSpacing = 0
	}
	if o.ZombieTimeout <= 0 {
		o.ZombieTimeout = base.ZombieTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = base.PollInterval
	}
	return o
}

// Turn is the outcome of AwaitTurn. Claimed reports that the caller now owns
// Job and must execute it. Otherwise Job already reached a terminal status
// and no work is needed.
type Turn struct {
	Job     *domain.Job
	Claimed bool
}

// Coordinator implements the claim protocol over a JobRepository.
type Coordinator struct {
	jobs     domain.JobRepository
	clock    clock.Clock
	logger   zerolog.Logger
	defaults Options
}

// New creates a coordinator whose AwaitTurn calls use opts unless the caller
// passes its own. A nil clock uses the wall clock.
func New(jobs domain.JobRepository, clk clock.Clock, logger zerolog.Logger, opts Options) *Coordinator {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Coordinator{
		jobs:     jobs,
		clock:    clk,
		logger:   logger,
		defaults: opts.resolve(DefaultOptions),
	}
}

// AwaitTurn blocks until jobID may run, has already finished, or MaxWait
// elapses. On timeout it returns domain.ErrTimeout and leaves the job
// untouched so a later call can pick it up. A nil opts uses the options the
// coordinator was created with.
func (c *Coordinator) AwaitTurn(ctx context.Context, jobID string, opts *Options) (*Turn, error) {
	o := c.defaults
	if opts != nil {
		o = opts.resolve(c.defaults)
	}
	return c.awaitTurn(ctx, jobID, o)
}

func (c *Coordinator) awaitTurn(ctx context.Context, jobID string, opts Options) (*Turn, error) {
	start := c.clock.Now()
	deadline := start.Add(opts.MaxWait)
	log := c.logger.With().Str("job_id", jobID).Logger()

	wait := func(d time.Duration) error {
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			log.Info().Dur("max_wait", opts.MaxWait).Msg("gave up waiting for turn")
			return domain.ErrTimeout
		}
		if d > remaining {
			d = remaining
		}
		return c.clock.Sleep(ctx, d)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job, err := c.jobs.GetByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job.Status.Terminal() {
			return &Turn{Job: job}, nil
		}

		now := c.clock.Now()
		if now.Sub(start) > opts.MaxWait {
			return nil, domain.ErrTimeout
		}

		// The pending snapshot must be taken before the processing list.
		// A job claimed after this point shows up as processing below.
		pending, err := c.jobs.ListByStatus(ctx, domain.JobStatusPending)
		if err != nil {
			return nil, fmt.Errorf("list pending jobs: %w", err)
		}

		busy, changed, err := c.inspectProcessing(ctx, log, now, opts.ZombieTimeout)
		if err != nil {
			return nil, err
		}
		if changed {
			continue
		}
		if busy {
			log.Debug().Msg("another job is processing")
			if err := wait(opts.PollInterval); err != nil {
				return nil, err
			}
			continue
		}

		if len(pending) == 0 || pending[0].ID != jobID {
			log.Debug().Int("pending", len(pending)).Msg("waiting for older jobs")
			if err := wait(opts.PollInterval); err != nil {
				return nil, err
			}
			continue
		}

		latest, err := c.jobs.MostRecentlyCompleted(ctx)
		if err != nil {
			return nil, fmt.Errorf("load latest completed job: %w", err)
		}
		if latest != nil {
			if since := now.Sub(latest.UpdatedAt); since < opts.MinSpacing {
				if err := wait(opts.MinSpacing - since); err != nil {
					return nil, err
				}
				continue
			}
		}

		won, err := c.jobs.TransitionStatus(ctx, jobID, domain.JobStatusPending, job.Version, domain.JobStatusProcessing, domain.JobFields{})
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", jobID, err)
		}
		if !won {
			log.Debug().Msg("claim lost to a concurrent writer")
			continue
		}

		claimed, err := c.jobs.GetByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("reload claimed job %s: %w", jobID, err)
		}
		log.Info().Dur("waited", c.clock.Now().Sub(start)).Msg("job claimed")
		return &Turn{Job: claimed, Claimed: true}, nil
	}
}

// inspectProcessing reports whether a fresh processing job holds the slot.
// Stale ones are reclassified as failed; changed is set when a
// reclassification lost its race so the caller re-reads before deciding.
func (c *Coordinator) inspectProcessing(ctx context.Context, log zerolog.Logger, now time.Time, zombieTimeout time.Duration) (busy, changed bool, err error) {
	processing, err := c.jobs.ListByStatus(ctx, domain.JobStatusProcessing)
	if err != nil {
		return false, false, fmt.Errorf("list processing jobs: %w", err)
	}
	for i := range processing {
		p := &processing[i]
		if p.Fresh(now, zombieTimeout) {
			busy = true
			continue
		}
		won, err := c.jobs.TransitionStatus(ctx, p.ID, domain.JobStatusProcessing, p.Version, domain.JobStatusFailed, domain.WithError(domain.ZombieError))
		if err != nil {
			log.Warn().Err(err).Str("zombie_id", p.ID).Msg("failed to reclassify stale job")
			busy = true
			continue
		}
		if !won {
			changed = true
			continue
		}
		log.Warn().
			Str("zombie_id", p.ID).
			Time("last_heartbeat", p.UpdatedAt).
			Msg("reclassified stale processing job as failed")
	}
	return busy, changed, nil
}
