// Package clickhouse provides a ClickHouse table-insert sink on top of
// github.com/ClickHouse/clickhouse-go/v2's native client, grounded on the
// same batch-insert shape as the teacher's internal/impl/sql/output_sql_insert.go
// (the teacher itself only wires clickhouse-go in as a database/sql driver;
// here it's used directly via its own native Conn for the simpler
// single-column insert this spec calls for).
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the clickhouse sink plugin to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSink("clickhouse", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

type sink struct {
	conn  clickhouse.Conn
	table string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	addr, ok := spec.Attributes["address"].(string)
	if !ok || addr == "" {
		return nil, fmt.Errorf("clickhouse sink requires an \"address\" attribute")
	}
	table, ok := spec.Attributes["table"].(string)
	if !ok || table == "" {
		return nil, fmt.Errorf("clickhouse sink requires a \"table\" attribute")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{Addr: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connecting to clickhouse: %w", err)
	}
	return &sink{conn: conn, table: table}, nil
}

// Write implements component.Sink: one PrepareBatch per call, matching the
// one-round-trip-per-batch shape every other SQL-family sink in this module
// uses.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	chBatch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (payload)", s.table))
	if err != nil {
		return fmt.Errorf("preparing clickhouse batch: %w", err)
	}
	for _, rec := range batch {
		if err := chBatch.Append(fmt.Sprintf("%v", rec.Payload)); err != nil {
			return fmt.Errorf("appending to clickhouse batch: %w", err)
		}
	}
	if err := chBatch.Send(); err != nil {
		return fmt.Errorf("sending clickhouse batch: %w", err)
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	return s.conn.Close()
}
