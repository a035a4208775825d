package chat

import (
	"context"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

// RunSweeper deletes stale presence records every cleanup interval until ctx
// is cancelled. Readers already ignore stale records; the sweep keeps the
// store from growing and pushes the removal to subscribers.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Service) SweepOnce(ctx context.Context) int {
	removed, err := s.presence.RemoveStale(ctx, s.opts.StaleAfter)
	if err != nil {
		s.logger.Warn(logging.Presence, logging.Cleanup, "stale presence sweep failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return 0
	}

	if removed > 0 {
		s.logger.Info(logging.Presence, logging.Cleanup, "removed stale presence records", map[logging.ExtraKey]any{
			"Removed": removed,
		})
		if s.metrics != nil {
			s.metrics.StaleRemoved.Add(float64(removed))
		}
	}
	return removed
}
