// Package redis provides a Redis list sink on top of
// github.com/redis/go-redis/v9, grounded on the teacher's
// internal/impl/redis/output_list.go: RPUSH each record's payload onto a
// named list, pipelining the whole batch in one round trip.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the redis sink plugin to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSink("redis", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

type sink struct {
	client *goredis.Client
	key    string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	addr, ok := spec.Attributes["address"].(string)
	if !ok || addr == "" {
		return nil, fmt.Errorf("redis sink requires an \"address\" attribute")
	}
	key, ok := spec.Attributes["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("redis sink requires a \"key\" attribute")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	return &sink{client: client, key: key}, nil
}

// Write implements component.Sink: the whole batch is pipelined as a single
// RPUSH round trip, matching the teacher's multi-message branch.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	values := make([]any, 0, len(batch))
	for _, rec := range batch {
		values = append(values, fmt.Sprintf("%v", rec.Payload))
	}
	if err := s.client.RPush(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("rpush to redis key %q: %w", s.key, err)
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	return s.client.Close()
}
