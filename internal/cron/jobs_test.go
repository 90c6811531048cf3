package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-engine/internal/cart"
	"github.com/angelmondragon/commerce-engine/pkg/db/dbtest"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
)

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCartExpiryJobPurgesInBatches(t *testing.T) {
	conn := dbtest.Open(t)
	repo := cart.NewRepository(conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.CreateIfAbsent(ctx, cart.New(uuid.NewString(), sweepNow.Add(-48*time.Hour), time.Hour))
		require.NoError(t, err)
	}
	_, err := repo.CreateIfAbsent(ctx, cart.New("active", sweepNow, time.Hour))
	require.NoError(t, err)

	job, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger:    logger.Nop(),
		Carts:     repo,
		BatchSize: 2,
		Now:       func() time.Time { return sweepNow },
	})
	require.NoError(t, err)
	assert.Equal(t, "cart_expiry", job.Name())

	rows, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)

	var remaining []models.Cart
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "active", remaining[0].ShopperID)
}

type failingPurger struct {
	calls int
}

func (f *failingPurger) PurgeExpired(context.Context, time.Time, int) (int64, error) {
	f.calls++
	if f.calls == 1 {
		return 10, nil
	}
	return 0, errors.New("db gone")
}

func TestCartExpiryJobReportsPartialProgressOnError(t *testing.T) {
	purger := &failingPurger{}
	job, err := NewCartExpiryJob(CartExpiryJobParams{Logger: logger.Nop(), Carts: purger, BatchSize: 10})
	require.NoError(t, err)

	rows, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(10), rows)
	assert.Equal(t, 2, purger.calls)
}

func TestOutboxRetentionJobDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	ctx := context.Background()

	old := sweepNow.Add(-40 * 24 * time.Hour)
	recent := sweepNow.Add(-time.Hour)
	seed := []models.OutboxEvent{
		outboxRow(&old),
		outboxRow(&old),
		outboxRow(&recent),
		outboxRow(nil),
	}
	for _, row := range seed {
		require.NoError(t, repo.Insert(conn, row))
	}

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:    logger.Nop(),
		Outbox:    repo,
		Retention: 30 * 24 * time.Hour,
		BatchSize: 1,
		Now:       func() time.Time { return sweepNow },
	})
	require.NoError(t, err)
	assert.Equal(t, "outbox_retention", job.Name())

	rows, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var unpublished int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&unpublished).Error)
	assert.Equal(t, int64(1), unpublished)
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	_, err := NewCartExpiryJob(CartExpiryJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
	_, err = NewCartExpiryJob(CartExpiryJobParams{Carts: &failingPurger{}})
	assert.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}

func outboxRow(publishedAt *time.Time) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		PublishedAt:   publishedAt,
	}
}
