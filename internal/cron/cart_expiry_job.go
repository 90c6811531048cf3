package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/commerce-engine/pkg/logger"
)

const (
	cartExpiryJobName       = "cart_expiry"
	defaultCartSweepBatch   = 500
	maxBatchesPerInvocation = 100
)

type expiredCartPurger interface {
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// CartExpiryJobParams configure the expired cart sweep.
type CartExpiryJobParams struct {
	Logger    *logger.Logger
	Carts     expiredCartPurger
	BatchSize int
	Now       func() time.Time
}

type cartExpiryJob struct {
	logg      *logger.Logger
	carts     expiredCartPurger
	batchSize int
	now       func() time.Time
}

// NewCartExpiryJob builds the job that deletes carts past their expiry along
// with their items. Carts never hold reservations, so no stock moves.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Carts == nil {
		return nil, errors.New("cart repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCartSweepBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &cartExpiryJob{
		logg:      params.Logger,
		carts:     params.Carts,
		batchSize: batch,
		now:       now,
	}, nil
}

func (j *cartExpiryJob) Name() string { return cartExpiryJobName }

func (j *cartExpiryJob) Run(ctx context.Context) (int64, error) {
	now := j.now().UTC()
	var total int64
	for i := 0; i < maxBatchesPerInvocation; i++ {
		purged, err := j.carts.PurgeExpired(ctx, now, j.batchSize)
		total += purged
		if err != nil {
			return total, err
		}
		if purged < int64(j.batchSize) {
			break
		}
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "carts_purged", total), "expired carts purged")
	}
	return total, nil
}
