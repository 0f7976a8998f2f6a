package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Collector periodically purges jobs older than the retention window.
type Collector struct {
	service   *Service
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

func NewCollector(service *Service, retention, interval time.Duration, logger zerolog.Logger) *Collector {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Collector{service: service, retention: retention, interval: interval, logger: logger}
}

// RunOnce performs a single purge.
func (c *Collector) RunOnce(ctx context.Context) (int, error) {
	return c.service.Purge(ctx, c.retention)
}

// Run purges immediately and then on every interval until ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info().
		Dur("retention", c.retention).
		Dur("interval", c.interval).
		Msg("collector: started")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("collector: purge failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
