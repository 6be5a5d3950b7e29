package relay

import (
	"context"
	"time"
)

// RunSweeper clears expired mutes on a fixed interval and tells each
// affected user they may write again. Blocks until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper shutting down")
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep execution exception", "err", r)
			sweepErrorCount.Inc()
		}
	}()

	expired, err := s.store.SweepExpired(ctx, time.Now())
	if err != nil {
		sweepErrorCount.Inc()
		s.logger.Error("failed to sweep expired mutes", "err", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	mutesExpiredCount.Add(float64(len(expired)))

	// Notification failures don't roll back the eviction; the user may have
	// blocked the bot.
	for _, userID := range expired {
		notifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.notify(notifyCtx, userID, msgAutoUnmuted)
		cancel()
		if err != nil {
			s.logger.Warn("failed to notify user about lifted mute", "err", err, "userID", userID)
			continue
		}
		s.logger.Info("user automatically unmuted", "userID", userID)
	}
}
