package main

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/config"
	"github.com/angelmondragon/commerce-engine/pkg/db"
	"github.com/angelmondragon/commerce-engine/pkg/db/dbtest"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/metrics"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/commerce-engine/pkg/outbox/registry"
)

type fakeSink struct {
	errs      []error
	published []*gcppubsub.Message
	topics    []string
}

func (f *fakeSink) Ping(context.Context) error { return nil }

func (f *fakeSink) Publish(_ context.Context, topic string, msg *gcppubsub.Message) error {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, msg)
	return nil
}

type relayFixture struct {
	conn  *gorm.DB
	sink  *fakeSink
	relay *Relay
	emit  func(t *testing.T) uuid.UUID
}

func newRelayFixture(t *testing.T, maxAttempts int) *relayFixture {
	t.Helper()
	conn := dbtest.Open(t)
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.NoError(t, err)

	sink := &fakeSink{}
	relay, err := NewRelay(RelayParams{
		Config:     config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		Logger:     logger.Nop(),
		DB:         db.Wrap(conn),
		Sink:       sink,
		Repository: outbox.NewRepository(conn),
		DLQ:        outbox.NewDLQRepository(conn),
		Registry:   reg,
		Metrics:    metrics.NewOutboxMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	emit := func(t *testing.T) uuid.UUID {
		t.Helper()
		orderID := uuid.New()
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Data:          payloads.OrderCreatedEvent{OrderID: orderID, OrderNumber: "ORD-1"},
			})
		}))
		return orderID
	}
	return &relayFixture{conn: conn, sink: sink, relay: relay, emit: emit}
}

func (f *relayFixture) row(t *testing.T, aggregateID uuid.UUID) models.OutboxEvent {
	t.Helper()
	var row models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", aggregateID).First(&row).Error)
	return row
}

func TestDrainOncePublishesAndMarksRows(t *testing.T) {
	f := newRelayFixture(t, 5)
	first := f.emit(t)
	second := f.emit(t)

	claimed, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)
	require.Len(t, f.sink.published, 2)
	assert.Equal(t, []string{"orders", "orders"}, f.sink.topics)
	assert.Equal(t, string(enums.EventOrderCreated), f.sink.published[0].Attributes["event_type"])
	assert.Equal(t, first.String(), f.sink.published[0].OrderingKey)

	assert.NotNil(t, f.row(t, first).PublishedAt)
	assert.NotNil(t, f.row(t, second).PublishedAt)

	claimed, err = f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed)
}

func TestDrainOnceRetriesTransientFailure(t *testing.T) {
	f := newRelayFixture(t, 5)
	id := f.emit(t)
	f.sink.errs = []error{errors.New("unavailable")}

	_, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)

	row := f.row(t, id)
	assert.Nil(t, row.PublishedAt)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "unavailable")

	_, err = f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f.row(t, id).PublishedAt)
}

func TestDrainOnceDeadLettersAtMaxAttempts(t *testing.T) {
	f := newRelayFixture(t, 2)
	id := f.emit(t)
	f.sink.errs = []error{errors.New("boom"), errors.New("boom again")}

	for i := 0; i < 2; i++ {
		_, err := f.relay.drainOnce(context.Background())
		require.NoError(t, err)
	}

	row := f.row(t, id)
	assert.True(t, row.Terminal)
	assert.Nil(t, row.PublishedAt)

	entry, err := outbox.NewDLQRepository(f.conn).FindByEventID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)
	assert.Equal(t, 2, entry.AttemptCount)

	claimed, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed)
}

func TestDrainOnceDeadLettersUnknownEvent(t *testing.T) {
	f := newRelayFixture(t, 5)
	bad := models.OutboxEvent{
		EventType:     "legacy_event",
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"x","occurredAt":"2026-01-01T00:00:00Z","data":{}}`),
	}
	require.NoError(t, f.conn.Create(&bad).Error)

	_, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.sink.published)

	entry, err := outbox.NewDLQRepository(f.conn).FindByEventID(context.Background(), bad.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
}

func TestJudge(t *testing.T) {
	assert.Equal(t, verdict{}, judge(nil, 3, 5))

	v := judge(errors.New("x"), 0, 5)
	assert.False(t, v.deadLetter)
	assert.Error(t, v.err)

	v = judge(errors.New("x"), 4, 5)
	assert.True(t, v.deadLetter)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, v.reason)

	v = judge(registry.Permanent(errors.New("bad payload")), 0, 5)
	assert.True(t, v.deadLetter)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, v.reason)
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 200*time.Millisecond, nextBackoff(0, base, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newRelayFixture(t, 5)
	f.emit(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		var count int64
		f.conn.Model(&models.OutboxEvent{}).Where("published_at IS NOT NULL").Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	_, err := NewRelay(RelayParams{})
	assert.Error(t, err)
}
