package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imagequeue/internal/clock"
	"imagequeue/internal/domain"
)

// RetryingGenerator wraps a provider with exponential backoff on rate
// limiting. It holds no state between calls.
type RetryingGenerator struct {
	next       Generator
	clock      clock.Clock
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
}

// RetryOptions configures a RetryingGenerator. Zero values take defaults.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	Clock      clock.Clock
	Logger     zerolog.Logger
}

// NewRetryingGenerator wraps next.
func NewRetryingGenerator(next Generator, opts RetryOptions) *RetryingGenerator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &RetryingGenerator{
		next:       next,
		clock:      opts.Clock,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		logger:     opts.Logger,
	}
}

// Generate calls the wrapped provider up to maxRetries times. Between
// rate-limited attempts it sleeps baseDelay * 2^attempt. Exhaustion yields
// domain.ErrRateLimited; any other failure yields domain.ErrExternalService
// without retrying.
func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		data, err := g.next.Generate(ctx, prompt)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, fmt.Errorf("%w: %v", domain.ErrExternalService, err)
		}
		lastErr = err
		if attempt == g.maxRetries-1 {
			break
		}
		delay := g.baseDelay << attempt
		g.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("image generation rate limited; backing off")
		if err := g.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %d attempts: %v", domain.ErrRateLimited, g.maxRetries, lastErr)
}

var _ Generator = (*RetryingGenerator)(nil)
