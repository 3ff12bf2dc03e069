package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

const (
	defaultOutboxKeep     = 30 * 24 * time.Hour
	defaultParkedAttempts = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settledEventPruner interface {
	PruneSettled(ctx context.Context, tx *gorm.DB, cutoff time.Time, parkedAttempts int) (int64, error)
}

type affectedRecorder interface {
	AddAffected(job string, n int)
}

type OutboxRetentionJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Outbox settledEventPruner
	// KeepFor is how long published and parked events stay queryable for
	// replay and audit.
	KeepFor time.Duration
	// ParkedAttempts must match the publisher's attempt ceiling.
	ParkedAttempts int
	Metrics        affectedRecorder
	Clock          func() time.Time
}

// NewOutboxRetentionJob prunes outbox rows that no publisher will touch again.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	keep := params.KeepFor
	if keep <= 0 {
		keep = defaultOutboxKeep
	}
	parked := params.ParkedAttempts
	if parked <= 0 {
		parked = defaultParkedAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &outboxRetentionJob{
		logg:    params.Logger,
		db:      params.DB,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		keep:    keep,
		parked:  parked,
		now:     clock,
	}, nil
}

type outboxRetentionJob struct {
	logg    *logger.Logger
	db      txRunner
	outbox  settledEventPruner
	metrics affectedRecorder
	keep    time.Duration
	parked  int
	now     func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	var pruned int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.PruneSettled(ctx, tx, cutoff, j.parked)
		pruned = n
		return err
	})
	if err != nil {
		return fmt.Errorf("prune settled outbox events: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddAffected(j.Name(), int(pruned))
	}
	if pruned > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cutoff": cutoff,
			"pruned": pruned,
		}), "settled outbox events pruned")
	}
	return nil
}
