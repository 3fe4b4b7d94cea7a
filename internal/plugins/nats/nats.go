// Package nats provides NATS core pub/sub source and sink plugins on top of
// github.com/nats-io/nats.go, grounded on the teacher's
// internal/impl/nats/input.go (ChanSubscribe into a buffered channel) and
// output.go (Publish per message, no native batching in core NATS).
package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the nats source and sink plugins to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSource("nats", func(spec topology.PluginSpec) (component.Source, error) {
		return newSource(spec)
	})
	reg.RegisterSink("nats", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

func url(spec topology.PluginSpec) (string, error) {
	u, ok := spec.Attributes["url"].(string)
	if !ok || u == "" {
		return "", fmt.Errorf("nats plugin requires a \"url\" attribute")
	}
	return u, nil
}

func subject(spec topology.PluginSpec) (string, error) {
	s, ok := spec.Attributes["subject"].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("nats plugin requires a \"subject\" attribute")
	}
	return s, nil
}

type source struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	msgChan chan *nats.Msg

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newSource(spec topology.PluginSpec) (*source, error) {
	u, err := url(spec)
	if err != nil {
		return nil, err
	}
	subj, err := subject(spec)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(u)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &source{conn: conn, subject: subj, msgChan: make(chan *nats.Msg, 64), stopCh: make(chan struct{})}, nil
}

// Start implements component.Source.
func (s *source) Start(ctx context.Context, into component.Buffer) error {
	sub, err := s.conn.ChanSubscribe(s.subject, s.msgChan)
	if err != nil {
		return fmt.Errorf("subscribing to %q: %w", s.subject, err)
	}
	s.sub = sub

	go func() {
		for {
			select {
			case msg, open := <-s.msgChan:
				if !open {
					return
				}
				rec := message.NewRecord(msg.Data, message.EventTypeLog).WithKey(msg.Subject)
				if err := into.Write(ctx, message.Batch{rec}); err != nil {
					return
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop implements component.Source.
func (s *source) Stop(context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	s.conn.Close()
	return nil
}

type sink struct {
	conn    *nats.Conn
	subject string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	u, err := url(spec)
	if err != nil {
		return nil, err
	}
	subj, err := subject(spec)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(u)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &sink{conn: conn, subject: subj}, nil
}

// Write implements component.Sink: core NATS has no batch-publish
// primitive, so each record is published individually then flushed once.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	for _, rec := range batch {
		if err := s.conn.Publish(s.subject, []byte(fmt.Sprintf("%v", rec.Payload))); err != nil {
			return fmt.Errorf("publishing to %q: %w", s.subject, err)
		}
	}
	return s.conn.FlushWithContext(ctx)
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	s.conn.Close()
	return nil
}
