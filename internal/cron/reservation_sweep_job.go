package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

const (
	defaultSweepBatch  = 200
	maxSweepBatchesRun = 10
)

type expiredHoldReleaser interface {
	ReleaseExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

type ReservationSweepJobParams struct {
	Logger    *logger.Logger
	Ledger    expiredHoldReleaser
	Metrics   affectedRecorder
	BatchSize int
	Clock     func() time.Time
}

// NewReservationSweepJob releases holds whose expiry has passed, returning
// their quantity to available stock.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("reservation ledger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &reservationSweepJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		batch:   batch,
		now:     clock,
	}, nil
}

type reservationSweepJob struct {
	logg    *logger.Logger
	ledger  expiredHoldReleaser
	metrics affectedRecorder
	batch   int
	now     func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

// Run drains full batches until one comes back short, capped per cycle.
func (j *reservationSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for i := 0; i < maxSweepBatchesRun; i++ {
		released, err := j.ledger.ReleaseExpired(ctx, now, j.batch)
		total += released
		if err != nil {
			j.record(total)
			return fmt.Errorf("release expired holds: %w", err)
		}
		if released < j.batch {
			break
		}
	}
	j.record(total)
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "released", total), "expired holds released")
	}
	return nil
}

func (j *reservationSweepJob) record(n int) {
	if j.metrics != nil {
		j.metrics.AddAffected(j.Name(), n)
	}
}
