package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/collectmall/collectmall-backend/pkg/logger"
)

const (
	defaultResubmitAfter = 30 * time.Minute
	defaultResubmitBatch = 200
)

type settlementResubmitter interface {
	ResubmitStale(ctx context.Context, before time.Time, limit int) (int, error)
}

// SettlementResubmitJobParams configure the settlement resubmit job.
type SettlementResubmitJobParams struct {
	Logger  *logger.Logger
	Gateway settlementResubmitter
	After   time.Duration
	Batch   int
}

// NewSettlementResubmitJob requeues ledger operations whose results never
// arrived. Assets keep their stored chain identifier so the ledger treats the
// replay as the same operation.
func NewSettlementResubmitJob(params SettlementResubmitJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("settlement gateway required")
	}
	after := params.After
	if after <= 0 {
		after = defaultResubmitAfter
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultResubmitBatch
	}
	return &settlementResubmitJob{
		logg:    params.Logger,
		gateway: params.Gateway,
		after:   after,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type settlementResubmitJob struct {
	logg    *logger.Logger
	gateway settlementResubmitter
	after   time.Duration
	batch   int
	now     func() time.Time
}

func (j *settlementResubmitJob) Name() string { return "settlement-resubmit" }

func (j *settlementResubmitJob) Run(ctx context.Context) error {
	before := j.now().UTC().Add(-j.after)
	count, err := j.gateway.ResubmitStale(ctx, before, j.batch)
	if err != nil {
		return fmt.Errorf("settlement resubmit: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_before": before,
		"resubmitted":  count,
	})
	j.logg.Info(logCtx, "settlement resubmit complete")
	return nil
}
