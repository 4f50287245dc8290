package checkpoint

import (
	"context"
	"time"

	"github.com/hupe1980/agentrelay/logging"
)

// Sweeper periodically deletes error records that the persistence layer
// wrote during post-completion races. This is an administrative operation
// and runs outside the per-run hot path.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   logging.Logger
}

// NewSweeper creates a sweeper over the given store. A nil logger is
// replaced with a NoOpLogger.
func NewSweeper(store Store, interval time.Duration, logger logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled. It performs
// one immediate sweep on start so restarts do not leave stale records
// waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	if err := s.SweepOnce(ctx); err != nil {
		s.logger.Warn("checkpoint sweep failed: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("checkpoint sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce deletes all error channel records and logs the count.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	n, err := s.store.DeleteChannel(ctx, ErrorChannel)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("swept stale checkpoint error records count=%d", n)
	}
	return nil
}
