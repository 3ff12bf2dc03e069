package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

type staleCheckoutExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

type CheckoutExpiryJobParams struct {
	Logger      *logger.Logger
	Coordinator staleCheckoutExpirer
	Metrics     affectedRecorder
	BatchSize   int
	Clock       func() time.Time
}

// NewCheckoutExpiryJob cancels provisional orders whose payment never
// arrived inside the hold window and voids their authorizations.
func NewCheckoutExpiryJob(params CheckoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("payment coordinator required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &checkoutExpiryJob{
		logg:        params.Logger,
		coordinator: params.Coordinator,
		metrics:     params.Metrics,
		batch:       batch,
		now:         clock,
	}, nil
}

type checkoutExpiryJob struct {
	logg        *logger.Logger
	coordinator staleCheckoutExpirer
	metrics     affectedRecorder
	batch       int
	now         func() time.Time
}

func (j *checkoutExpiryJob) Name() string { return "checkout-expiry" }

func (j *checkoutExpiryJob) Run(ctx context.Context) error {
	expired, err := j.coordinator.ExpireStale(ctx, j.now().UTC(), j.batch)
	if j.metrics != nil {
		j.metrics.AddAffected(j.Name(), expired)
	}
	if err != nil {
		return fmt.Errorf("expire stale checkouts: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "stale checkouts expired")
	}
	return nil
}
