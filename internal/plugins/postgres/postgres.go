// Package postgres provides a Postgres table-insert sink on top of
// github.com/jackc/pgx/v5/pgxpool, grounded on the teacher's
// internal/impl/sql/output_sql_insert.go (Connect once, batch-insert per
// Write call) generalized from generic SQL to Postgres's own driver since
// this spec has no query/column configuration surface of its own, just a
// destination table receiving the record payload as a single column.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the postgres sink plugin to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSink("postgres", func(spec topology.PluginSpec) (component.Sink, error) {
		return newSink(spec)
	})
}

type sink struct {
	pool  *pgxpool.Pool
	table string
}

func newSink(spec topology.PluginSpec) (*sink, error) {
	dsn, ok := spec.Attributes["dsn"].(string)
	if !ok || dsn == "" {
		return nil, fmt.Errorf("postgres sink requires a \"dsn\" attribute")
	}
	table, ok := spec.Attributes["table"].(string)
	if !ok || table == "" {
		return nil, fmt.Errorf("postgres sink requires a \"table\" attribute")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &sink{pool: pool, table: table}, nil
}

// Write implements component.Sink: one batched INSERT using pgx's native
// batch API, matching the teacher's "one round trip per batch" shape.
func (s *sink) Write(ctx context.Context, batch message.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s (payload) VALUES ($1)", s.table)

	pgBatch := &pgx.Batch{}
	for _, rec := range batch {
		pgBatch.Queue(query, fmt.Sprintf("%v", rec.Payload))
	}

	results := s.pool.SendBatch(ctx, pgBatch)
	defer results.Close()
	for range batch {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting into %q: %w", s.table, err)
		}
	}
	return nil
}

// Close implements component.Sink.
func (s *sink) Close(context.Context) error {
	s.pool.Close()
	return nil
}
