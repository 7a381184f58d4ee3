package service

import (
	"context"
	"time"
)

// PurgeExpired deletes refresh token rows whose expiry has passed. Returns
// the number of rows removed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.refreshTokens.DeleteAllExpired(ctx, time.Now().UTC())
}

// RunSweeper purges expired refresh tokens on the given interval until ctx
// is canceled. Expired rows are already unusable (refresh checks expiry);
// the sweep only keeps the table from accumulating dead lineages.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("refresh token sweep", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("refresh token sweep", "removed", n)
			}
		}
	}
}
