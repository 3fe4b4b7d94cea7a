// Package amqp provides an AMQP 0.9.1 exchange-publish sink on top of
// github.com/rabbitmq/amqp091-go, grounded on the teacher's
// internal/impl/amqp09/output.go: dial, open a channel, publish each
// record, matching its Connect/WriteBatch split.
package amqp

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the amqp sink plugin to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSink("amqp", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

type sink struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	key      string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	url, ok := spec.Attributes["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("amqp sink requires a \"url\" attribute")
	}
	exchange, _ := spec.Attributes["exchange"].(string)
	routingKey, _ := spec.Attributes["routing_key"].(string)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}
	return &sink{conn: conn, channel: ch, exchange: exchange, key: routingKey}, nil
}

// Write implements component.Sink: each record is published individually,
// AMQP 0.9.1 has no native batch-publish primitive.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	for _, rec := range batch {
		err := s.channel.PublishWithContext(ctx, s.exchange, s.key, false, false, amqp.Publishing{
			ContentType: "text/plain",
			Body:        []byte(fmt.Sprintf("%v", rec.Payload)),
		})
		if err != nil {
			return fmt.Errorf("publishing to exchange %q: %w", s.exchange, err)
		}
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	if err := s.channel.Close(); err != nil {
		return err
	}
	return s.conn.Close()
}
