package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/metrics"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/outbox/registry"
)

// verdict is what the relay does with a row after one publish attempt.
type verdict struct {
	deadLetter bool
	reason     enums.OutboxDLQErrorReason
	err        error
}

// judge classifies a publish error. Rows whose next attempt would reach
// maxAttempts are dead-lettered along with non-retryable failures.
func judge(err error, attempts, maxAttempts int) verdict {
	if err == nil {
		return verdict{}
	}
	if registry.IsPermanent(err) {
		return verdict{deadLetter: true, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	if attempts+1 >= maxAttempts {
		return verdict{
			deadLetter: true,
			reason:     enums.OutboxDLQReasonMaxAttempts,
			err:        fmt.Errorf("max publish attempts reached: %w", err),
		}
	}
	return verdict{err: err}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"max_attempts":   r.maxAttempts,
		"aggregate_type": string(event.AggregateType),
	})

	resolved, err := r.registry.Resolve(event)
	if err == nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"topic":    resolved.Topic,
			"event_id": resolved.Envelope.EventID,
		})
		err = r.publish(ctx, event, resolved)
	}

	v := judge(err, event.AttemptCount, r.maxAttempts)
	switch {
	case v.err == nil:
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.ObserveEvent(metrics.RelayPublished, string(event.EventType))
		r.logg.Info(ctx, "outbox event published")
	case v.deadLetter:
		if err := r.deadLetter(ctx, tx, event, v); err != nil {
			return err
		}
		r.metrics.ObserveEvent(metrics.RelayDeadLettered, string(event.EventType))
	default:
		r.logg.Warn(r.logg.WithField(ctx, "error", v.err.Error()), "outbox publish failed, will retry")
		if err := r.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		r.metrics.ObserveEvent(metrics.RelayRetry, string(event.EventType))
	}
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"error_reason": string(v.reason),
		"error":        v.err.Error(),
	})
	r.logg.Warn(ctx, "outbox event dead-lettered")

	if err := r.dlq.InsertTx(tx, outbox.DeadLetter(event, v.reason, v.err, r.now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, v.err, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
		OrderingKey: event.AggregateID.String(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return r.sink.Publish(publishCtx, resolved.Topic, msg)
}
