package main

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/commerce-engine/pkg/outbox/registry"
)

// sink delivers one message to a topic and blocks until the broker acks it.
type sink interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type publisherSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubsubSink struct {
	client publisherSource
}

func newPubSubSink(client publisherSource) *pubsubSink {
	return &pubsubSink{client: client}
}

func (s *pubsubSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *pubsubSink) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.client.Publisher(topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	// Ordering keys are ignored unless the publisher opts in.
	pub.EnableMessageOrdering = true
	result := pub.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		pub.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}
