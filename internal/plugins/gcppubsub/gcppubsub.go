// Package gcppubsub provides Google Cloud Pub/Sub source and sink plugins on
// top of cloud.google.com/go/pubsub, grounded on the teacher's
// internal/impl/gcp/output_pubsub.go (NewClient, resolve a topic, Publish
// per record) and the matching input's Receive-callback shape.
package gcppubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the gcp_pubsub source and sink plugins to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSource("gcp_pubsub", func(spec topology.PluginSpec) (component.Source, error) {
		return newSource(spec)
	})
	reg.RegisterSink("gcp_pubsub", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

func project(spec topology.PluginSpec) (string, error) {
	p, ok := spec.Attributes["project"].(string)
	if !ok || p == "" {
		return "", fmt.Errorf("gcp_pubsub plugin requires a \"project\" attribute")
	}
	return p, nil
}

type source struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
}

func newSource(spec topology.PluginSpec) (*source, error) {
	p, err := project(spec)
	if err != nil {
		return nil, err
	}
	subID, ok := spec.Attributes["subscription"].(string)
	if !ok || subID == "" {
		return nil, fmt.Errorf("gcp_pubsub source requires a \"subscription\" attribute")
	}

	client, err := pubsub.NewClient(context.Background(), p)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &source{client: client, subscription: client.Subscription(subID)}, nil
}

// Start implements component.Source: Receive blocks, invoking the callback
// once per delivered message, exactly the shape pubsub.Subscription.Receive
// requires.
func (s *source) Start(ctx context.Context, into component.Buffer) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		rec := message.NewRecord(msg.Data, message.EventTypeLog).WithKey(msg.OrderingKey)
		if err := into.Write(ctx, message.Batch{rec}); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Stop implements component.Source: cancelling the context passed to
// Receive is pubsub's own shutdown mechanism, so Stop closes the client.
func (s *source) Stop(context.Context) error {
	return s.client.Close()
}

type sink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	p, err := project(spec)
	if err != nil {
		return nil, err
	}
	topicID, ok := spec.Attributes["topic"].(string)
	if !ok || topicID == "" {
		return nil, fmt.Errorf("gcp_pubsub sink requires a \"topic\" attribute")
	}

	client, err := pubsub.NewClient(context.Background(), p)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &sink{client: client, topic: client.Topic(topicID)}, nil
}

// Write implements component.Sink: publishes every record, then waits for
// all results so a transient publish failure surfaces to the caller instead
// of being silently dropped by the async publisher.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, rec := range batch {
		result := s.topic.Publish(ctx, &pubsub.Message{
			Data:        []byte(fmt.Sprintf("%v", rec.Payload)),
			OrderingKey: rec.Key,
		})
		results = append(results, result)
	}
	for _, r := range results {
		if _, err := r.Get(ctx); err != nil {
			return fmt.Errorf("publishing to pubsub topic: %w", err)
		}
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	s.topic.Stop()
	return s.client.Close()
}
