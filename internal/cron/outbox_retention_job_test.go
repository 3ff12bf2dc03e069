package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

type fakePruner struct {
	cutoffs []time.Time
	parked  int
	pruned  int64
	err     error
}

func (f *fakePruner) PruneSettled(_ context.Context, _ *gorm.DB, cutoff time.Time, parkedAttempts int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.parked = parkedAttempts
	return f.pruned, f.err
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestOutboxRetentionUsesKeepWindowAndParkedCeiling(t *testing.T) {
	now := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	pruner := &fakePruner{pruned: 7}
	metrics := newRecorder()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:         testLogger(),
		DB:             inlineTx{},
		Outbox:         pruner,
		KeepFor:        72 * time.Hour,
		ParkedAttempts: 4,
		Metrics:        metrics,
		Clock:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pruner.cutoffs) != 1 || !pruner.cutoffs[0].Equal(now.Add(-72*time.Hour)) {
		t.Fatalf("unexpected cutoffs %v", pruner.cutoffs)
	}
	if pruner.parked != 4 {
		t.Fatalf("expected parked ceiling 4, got %d", pruner.parked)
	}
	if metrics.affected["outbox-retention"] != 7 {
		t.Fatalf("expected 7 pruned, got %d", metrics.affected["outbox-retention"])
	}
}

func TestOutboxRetentionDefaults(t *testing.T) {
	now := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: testLogger(),
		DB:     inlineTx{},
		Outbox: pruner,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !pruner.cutoffs[0].Equal(now.Add(-defaultOutboxKeep)) {
		t.Fatalf("expected default cutoff, got %s", pruner.cutoffs[0])
	}
	if pruner.parked != defaultParkedAttempts {
		t.Fatalf("expected default parked ceiling, got %d", pruner.parked)
	}
}

func TestOutboxRetentionWrapsPruneError(t *testing.T) {
	boom := errors.New("statement timeout")
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: testLogger(),
		DB:     inlineTx{},
		Outbox: &fakePruner{err: boom},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped prune error, got %v", err)
	}
}

func TestOutboxRetentionRequiresRepository(t *testing.T) {
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), DB: inlineTx{}}); err == nil {
		t.Fatal("expected error without outbox repository")
	}
}
