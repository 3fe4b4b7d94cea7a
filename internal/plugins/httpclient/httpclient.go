// Package httpclient provides an HTTP polling source and an HTTP POST sink
// on top of github.com/go-resty/resty/v2, grounded on the teacher's
// internal/impl/io/input_http_client.go (poll-on-interval, one request per
// ReadBatch) and the same resty client this module's peerforward package
// already uses for its own control-plane calls.
package httpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

const defaultPollInterval = 5 * time.Second

// Register adds the http_client source and sink plugins to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSource("http_client", func(spec topology.PluginSpec) (component.Source, error) {
		return newSource(spec)
	})
	reg.RegisterSink("http_client", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

func target(spec topology.PluginSpec) (string, error) {
	u, ok := spec.Attributes["url"].(string)
	if !ok || u == "" {
		return "", fmt.Errorf("http_client plugin requires a \"url\" attribute")
	}
	return u, nil
}

func pollInterval(spec topology.PluginSpec) time.Duration {
	if v, ok := spec.Attributes["poll_interval_ms"]; ok {
		if n, ok := v.(int); ok && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultPollInterval
}

type source struct {
	client   *resty.Client
	url      string
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newSource(spec topology.PluginSpec) (*source, error) {
	u, err := target(spec)
	if err != nil {
		return nil, err
	}
	return &source{client: resty.New(), url: u, interval: pollInterval(spec), stopCh: make(chan struct{})}, nil
}

// Start implements component.Source: polls the configured URL on a fixed
// interval, emitting one Record per successful response body.
func (s *source) Start(ctx context.Context, into component.Buffer) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			resp, err := s.client.R().SetContext(ctx).Get(s.url)
			if err != nil || resp.IsError() {
				continue
			}
			rec := message.NewRecord(resp.Body(), message.EventTypeLog)
			if err := into.Write(ctx, message.Batch{rec}); err != nil {
				return err
			}
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop implements component.Source.
func (s *source) Stop(context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

type sink struct {
	client *resty.Client
	url    string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	u, err := target(spec)
	if err != nil {
		return nil, err
	}
	return &sink{client: resty.New(), url: u}, nil
}

// Write implements component.Sink: one POST per record, matching the
// teacher's own resty usage pattern in internal/peerforward's transport.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	for _, rec := range batch {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(fmt.Sprintf("%v", rec.Payload)).
			Post(s.url)
		if err != nil {
			return fmt.Errorf("posting to %q: %w", s.url, err)
		}
		if resp.IsError() {
			return fmt.Errorf("posting to %q: status %d", s.url, resp.StatusCode())
		}
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error { return nil }
