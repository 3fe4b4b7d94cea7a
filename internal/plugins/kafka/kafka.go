// Package kafka provides Kafka source and sink plugins on top of
// github.com/IBM/sarama, grounded on the teacher's
// internal/impl/kafka/input_sarama_kafka.go (connect-then-ReadBatch-loop
// shape) and output_kafka_franz.go (one flat batch write per call).
package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the kafka source and sink plugins to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSource("kafka", func(spec topology.PluginSpec) (component.Source, error) {
		return newSource(spec)
	})
	reg.RegisterSink("kafka", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

func brokers(spec topology.PluginSpec) ([]string, error) {
	raw, ok := spec.Attributes["brokers"]
	if !ok {
		return nil, fmt.Errorf("kafka plugin requires a \"brokers\" attribute")
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("kafka \"brokers\" entries must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("kafka \"brokers\" must be a list of strings")
	}
}

func topic(spec topology.PluginSpec) (string, error) {
	t, ok := spec.Attributes["topic"].(string)
	if !ok || t == "" {
		return "", fmt.Errorf("kafka plugin requires a \"topic\" attribute")
	}
	return t, nil
}

// source consumes every partition of a single topic using sarama's
// non-consumer-group Consumer, matching the explicit-partitions branch of
// the teacher's kafkaReader.connectExplicitTopics.
type source struct {
	consumer sarama.Consumer
	topic    string

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newSource(spec topology.PluginSpec) (*source, error) {
	addrs, err := brokers(spec)
	if err != nil {
		return nil, err
	}
	t, err := topic(spec)
	if err != nil {
		return nil, err
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true
	cfg.Net.DialTimeout = 5 * time.Second

	consumer, err := sarama.NewConsumer(addrs, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting kafka consumer: %w", err)
	}
	return &source{consumer: consumer, topic: t, stopCh: make(chan struct{})}, nil
}

// Start implements component.Source: one goroutine per partition, each
// writing consumed messages straight into the Buffer.
func (s *source) Start(ctx context.Context, into component.Buffer) error {
	partitions, err := s.consumer.Partitions(s.topic)
	if err != nil {
		return fmt.Errorf("listing partitions for %q: %w", s.topic, err)
	}

	for _, p := range partitions {
		pc, err := s.consumer.ConsumePartition(s.topic, p, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("consuming partition %d of %q: %w", p, s.topic, err)
		}
		s.wg.Add(1)
		go s.consumePartition(ctx, into, pc)
	}
	return nil
}

func (s *source) consumePartition(ctx context.Context, into component.Buffer, pc sarama.PartitionConsumer) {
	defer s.wg.Done()
	defer pc.Close()
	for {
		select {
		case msg, open := <-pc.Messages():
			if !open {
				return
			}
			rec := message.NewRecord(msg.Value, message.EventTypeLog).WithKey(string(msg.Key))
			if err := into.Write(ctx, message.Batch{rec}); err != nil {
				return
			}
		case <-pc.Errors():
			// Partition errors are read and discarded here; the partition
			// consumer itself keeps retrying sarama-side.
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop implements component.Source.
func (s *source) Stop(context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return s.consumer.Close()
}

// sink is a synchronous Kafka producer sink.
type sink struct {
	producer sarama.SyncProducer
	topic    string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	addrs, err := brokers(spec)
	if err != nil {
		return nil, err
	}
	t, err := topic(spec)
	if err != nil {
		return nil, err
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Net.DialTimeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(addrs, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting kafka producer: %w", err)
	}
	return &sink{producer: producer, topic: t}, nil
}

// Write implements component.Sink.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	for _, rec := range batch {
		msg := &sarama.ProducerMessage{
			Topic: s.topic,
			Value: sarama.ByteEncoder(fmt.Sprintf("%v", rec.Payload)),
		}
		if rec.Key != "" {
			msg.Key = sarama.StringEncoder(rec.Key)
		}
		if _, _, err := s.producer.SendMessage(msg); err != nil {
			return fmt.Errorf("sending to kafka topic %q: %w", s.topic, err)
		}
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	return s.producer.Close()
}
