package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/collectmall/collectmall-backend/pkg/logger"
)

type fakeResubmitter struct {
	before time.Time
	limit  int
	count  int
	err    error
}

func (f *fakeResubmitter) ResubmitStale(_ context.Context, before time.Time, limit int) (int, error) {
	f.before = before
	f.limit = limit
	return f.count, f.err
}

type fakeOutboxRepo struct {
	cutoff  time.Time
	limit   int
	deleted int64
	err     error
}

func (f *fakeOutboxRepo) DeletePublishedBefore(cutoff time.Time, limit int) (int64, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.deleted, f.err
}

func TestSettlementResubmitJob(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	gateway := &fakeResubmitter{count: 3}
	job, err := NewSettlementResubmitJob(SettlementResubmitJobParams{
		Logger:  logg,
		Gateway: gateway,
		After:   45 * time.Minute,
		Batch:   10,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	job.(*settlementResubmitJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gateway.limit != 10 {
		t.Fatalf("unexpected batch %d", gateway.limit)
	}
	if want := now.Add(-45 * time.Minute); !gateway.before.Equal(want) {
		t.Fatalf("unexpected cutoff %v, want %v", gateway.before, want)
	}
}

func TestSettlementResubmitJobPropagatesError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewSettlementResubmitJob(SettlementResubmitJobParams{
		Logger:  logg,
		Gateway: &fakeResubmitter{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error from gateway")
	}
}

func TestOutboxRetentionJob(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	repo := &fakeOutboxRepo{deleted: 12}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logg,
		Repository: repo,
		Retention:  7,
		BatchSize:  100,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := now.Add(-7 * 24 * time.Hour); !repo.cutoff.Equal(want) {
		t.Fatalf("unexpected cutoff %v, want %v", repo.cutoff, want)
	}
	if repo.limit != 100 {
		t.Fatalf("unexpected batch %d", repo.limit)
	}
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	if _, err := NewSettlementResubmitJob(SettlementResubmitJobParams{Logger: logg}); err == nil {
		t.Fatal("expected gateway requirement error")
	}
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logg}); err == nil {
		t.Fatal("expected repository requirement error")
	}
}
