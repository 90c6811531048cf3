package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/commerce-engine/pkg/logger"
)

const (
	outboxRetentionJobName   = "outbox_retention"
	defaultOutboxRetention   = 30 * 24 * time.Hour
	defaultOutboxDeleteBatch = 1000
)

type publishedOutboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// OutboxRetentionJobParams configure the outbox retention sweep.
type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	Outbox    publishedOutboxPruner
	Retention time.Duration
	BatchSize int
	Now       func() time.Time
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    publishedOutboxPruner
	retention time.Duration
	batchSize int
	now       func() time.Time
}

// NewOutboxRetentionJob builds the job that deletes published outbox rows
// older than the retention window. Unpublished and dead-lettered rows stay.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOutboxDeleteBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		retention: retention,
		batchSize: batch,
		now:       now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for i := 0; i < maxBatchesPerInvocation; i++ {
		deleted, err := j.outbox.DeletePublishedBefore(ctx, cutoff, j.batchSize)
		total += deleted
		if err != nil {
			return total, err
		}
		if deleted < int64(j.batchSize) {
			break
		}
	}
	if total > 0 {
		ctx = j.logg.WithFields(ctx, map[string]any{
			"rows_deleted": total,
			"cutoff":       cutoff.Format(time.RFC3339),
		})
		j.logg.Info(ctx, "outbox retention cleanup")
	}
	return total, nil
}
