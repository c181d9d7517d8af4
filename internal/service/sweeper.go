package service

import (
	"context"
	"fmt"
	"time"

	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/util"

	"go.uber.org/zap"
)

const (
	sweepLockKey = "reservation-sweep"
	sweepLockTTL = 30 * time.Second
)

// ExpirationSweeper finds holds past their deadline and releases them.
// Invoked on a fixed cadence by an external scheduler; safe to overlap
// with a concurrent sweep or a user-triggered release on the same ids,
// because release claims each reservation exactly once.
type ExpirationSweeper struct {
	store   Store
	cache   StockCache
	manager *ReservationManager
	logger  *zap.Logger
}

// NewExpirationSweeper creates a new expiration sweeper
func NewExpirationSweeper(store Store, cache StockCache, manager *ReservationManager) *ExpirationSweeper {
	return &ExpirationSweeper{
		store:   store,
		cache:   cache,
		manager: manager,
		logger:  util.GetLogger(),
	}
}

// Sweep releases every reservation whose deadline has passed. The
// distributed lock only suppresses redundant work; correctness does not
// depend on it.
func (es *ExpirationSweeper) Sweep(ctx context.Context) (*models.SweepResult, error) {
	ctx, span := util.StartSpan(ctx, "ExpirationSweeper.Sweep")
	defer span.End()

	util.SweepRunsTotal.Inc()

	if es.cache != nil {
		acquired, err := es.cache.AcquireLock(ctx, sweepLockKey, sweepLockTTL)
		if err != nil {
			es.logger.Warn("Sweep lock unavailable, proceeding without it", zap.Error(err))
		} else if !acquired {
			es.logger.Debug("Sweep already running elsewhere, skipping")
			return &models.SweepResult{}, nil
		} else {
			defer func() {
				if err := es.cache.ReleaseLock(context.Background(), sweepLockKey); err != nil {
					es.logger.Warn("Failed to release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	ids, err := es.store.GetExpiredReservationIDs(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query expired reservations: %w", err)
	}
	if len(ids) == 0 {
		return &models.SweepResult{}, nil
	}

	released, err := es.manager.ReleaseReservations(ctx, ids, "expired")
	if err != nil {
		return nil, fmt.Errorf("failed to release expired reservations: %w", err)
	}

	util.SweepReleasedTotal.Add(float64(released))
	es.logger.Info("Expiration sweep completed",
		zap.Int("expired_found", len(ids)),
		zap.Int("released", released))

	return &models.SweepResult{
		ExpiredFound:  len(ids),
		ReleasedCount: released,
	}, nil
}
