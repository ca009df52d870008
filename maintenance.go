package otcauth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupExpiredSessions deactivates sessions past expiry and purges rows
// past the grace retention window. Idempotent; safe to run concurrently
// from multiple workers.
func (e *Engine) CleanupExpiredSessions(ctx context.Context) (deactivated, purged int64, err error) {
	if e == nil || e.sessions == nil {
		return 0, 0, ErrEngineNotReady
	}
	deactivated, purged, err = e.sessions.CleanupExpired(ctx)
	if err != nil {
		return 0, 0, e.mapSessionError(err)
	}
	return deactivated, purged, nil
}

// RunMaintenance sweeps expired codes and sessions every interval until
// ctx is cancelled. Sweep failures are logged and retried on the next
// tick; both sweeps are idempotent so a crash mid-sweep loses nothing.
func (e *Engine) RunMaintenance(ctx context.Context, interval time.Duration) {
	if e == nil {
		return
	}
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
			codes, err := e.CleanupExpiredCodes(ctx)
			if err != nil {
				e.log.Warn("code cleanup failed", zap.Error(err))
			}

			deactivated, purged, err := e.CleanupExpiredSessions(ctx)
			if err != nil {
				e.log.Warn("session cleanup failed", zap.Error(err))
			}

			if codes > 0 || deactivated > 0 || purged > 0 {
				e.log.Info("maintenance sweep",
					zap.Int64("codes_purged", codes),
					zap.Int64("sessions_deactivated", deactivated),
					zap.Int64("sessions_purged", purged))
			}
		}
	}
}
