package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReleaser struct {
	batches []int
	err     error
	calls   int
	lastNow time.Time
}

func (f *fakeReleaser) ReleaseExpired(_ context.Context, now time.Time, _ int) (int, error) {
	f.lastNow = now
	f.calls++
	if f.calls > len(f.batches) {
		return 0, f.err
	}
	return f.batches[f.calls-1], nil
}

func TestReservationSweepDrainsFullBatches(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ledger := &fakeReleaser{batches: []int{2, 2, 1}}
	metrics := newRecorder()
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:    testLogger(),
		Ledger:    ledger,
		Metrics:   metrics,
		BatchSize: 2,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewReservationSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ledger.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", ledger.calls)
	}
	if !ledger.lastNow.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, ledger.lastNow)
	}
	if metrics.affected["reservation-sweep"] != 5 {
		t.Fatalf("expected 5 released, got %d", metrics.affected["reservation-sweep"])
	}
}

func TestReservationSweepReportsPartialFailure(t *testing.T) {
	ledger := &fakeReleaser{batches: []int{2}, err: errors.New("db down")}
	metrics := newRecorder()
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:    testLogger(),
		Ledger:    ledger,
		Metrics:   metrics,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewReservationSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if metrics.affected["reservation-sweep"] != 2 {
		t.Fatalf("expected released count kept, got %d", metrics.affected["reservation-sweep"])
	}
}

type fakeExpirer struct {
	expired int
	err     error
	limit   int
}

func (f *fakeExpirer) ExpireStale(_ context.Context, _ time.Time, limit int) (int, error) {
	f.limit = limit
	return f.expired, f.err
}

func TestCheckoutExpiryJob(t *testing.T) {
	expirer := &fakeExpirer{expired: 3}
	metrics := newRecorder()
	job, err := NewCheckoutExpiryJob(CheckoutExpiryJobParams{
		Logger:      testLogger(),
		Coordinator: expirer,
		Metrics:     metrics,
	})
	if err != nil {
		t.Fatalf("NewCheckoutExpiryJob: %v", err)
	}
	if job.Name() != "checkout-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.limit != defaultSweepBatch {
		t.Fatalf("expected default batch %d, got %d", defaultSweepBatch, expirer.limit)
	}
	if metrics.affected["checkout-expiry"] != 3 {
		t.Fatalf("expected 3 expired, got %d", metrics.affected["checkout-expiry"])
	}

	expirer.err = errors.New("void failed")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestJobConstructorsValidate(t *testing.T) {
	if _, err := NewReservationSweepJob(ReservationSweepJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without ledger")
	}
	if _, err := NewCheckoutExpiryJob(CheckoutExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without coordinator")
	}
}
