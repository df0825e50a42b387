package sched

import (
	"context"
	"errors"
	"time"

	"jobflow/internal/infra/metrics"
	red "jobflow/internal/infra/redis"
	"jobflow/internal/usecase"

	"github.com/rs/zerolog"
)

const expiryLockKey = "lock:premium-expiry"

// ExpiryWorker periodically clears lapsed premium entitlements. With several
// instances running, the lock keeps their sweeps from overlapping.
type ExpiryWorker struct {
	interval time.Duration
	userUC   usecase.UserUseCase
	locker   red.Locker
	log      *zerolog.Logger
}

// NewExpiryWorker accepts a nil locker for single-instance deployments.
func NewExpiryWorker(interval time.Duration, userUC usecase.UserUseCase, locker red.Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		interval: interval,
		userUC:   userUC,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one sweep and returns how many users lost premium.
func (w *ExpiryWorker) Tick(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval/2)
		if errors.Is(err, red.ErrLockHeld) {
			w.log.Debug().Msg("expiry sweep running elsewhere")
			return 0
		}
		if err != nil {
			w.log.Error().Err(err).Msg("expiry lock failed")
			return 0
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), expiryLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("expiry unlock failed")
			}
		}()
	}

	ids, err := w.userUC.ExpirePremium(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
		return 0
	}
	if n := len(ids); n > 0 {
		metrics.AddPremiumExpired(n)
		w.log.Info().Int("count", n).Msg("premium entitlements expired")
	}
	return len(ids)
}
