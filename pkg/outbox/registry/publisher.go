// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-engine/pkg/config"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/outbox/payloads"
)

type route struct {
	aggregate enums.OutboxAggregateType
	topic     string
	decode    func(json.RawMessage) (any, error)
}

func routeTo[T any](aggregate enums.OutboxAggregateType, topic string) route {
	return route{
		aggregate: aggregate,
		topic:     topic,
		decode: func(data json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// ResolvedEvent is an outbox row ready to publish.
type ResolvedEvent struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]route
}

// NewEventRegistry routes every order event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	return &EventRegistry{routes: map[enums.OutboxEventType]route{
		enums.EventOrderCreated:         routeTo[payloads.OrderCreatedEvent](enums.AggregateOrder, cfg.OrdersTopic),
		enums.EventOrderStatusChanged:   routeTo[payloads.OrderStatusChangedEvent](enums.AggregateOrder, cfg.OrdersTopic),
		enums.EventOrderCancelled:       routeTo[payloads.OrderCancelledEvent](enums.AggregateOrder, cfg.OrdersTopic),
		enums.EventOrderPaymentRecorded: routeTo[payloads.OrderPaymentRecordedEvent](enums.AggregateOrder, cfg.OrdersTopic),
	}}, nil
}

// Topics lists the distinct destination topics in sorted order.
func (r *EventRegistry) Topics() []string {
	seen := map[string]bool{}
	var topics []string
	for _, rt := range r.routes {
		if !seen[rt.topic] {
			seen[rt.topic] = true
			topics = append(topics, rt.topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// TopicFor reports where eventType is published.
func (r *EventRegistry) TopicFor(eventType enums.OutboxEventType) (string, bool) {
	rt, ok := r.routes[eventType]
	return rt.topic, ok
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is permanent: retrying the same row cannot fix it.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	case rt.aggregate != event.AggregateType:
		return nil, Permanent(fmt.Errorf("event %s expects aggregate %s, got %s", event.EventType, rt.aggregate, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	env, err := outbox.Open(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Topic: rt.topic, Envelope: env, Payload: payload}, nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as one the relay must dead-letter instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
