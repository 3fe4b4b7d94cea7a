package component

import (
	"context"
	"time"

	"github.com/finnroblin/data-prepper/internal/message"
)

// Source writes Records it produces into the Buffer given to Start, until
// Stop is observed. Concurrency within a Source is the plugin's own business;
// the runtime only supplies the write target and a stop signal.
type Source interface {
	Start(ctx context.Context, into Buffer) error
	Stop(ctx context.Context) error
}

// Buffer is the only object concurrently read and written by the runtime;
// thread-safety is part of its contract.
type Buffer interface {
	Write(ctx context.Context, batch message.Batch) error
	// Read blocks up to maxWait accumulating a batch, returning whatever is
	// available (possibly empty) once maxWait elapses or the buffer has
	// enough queued to satisfy its own batching policy.
	Read(ctx context.Context, maxWait time.Duration) (message.Batch, error)
	// Commit acknowledges a batch previously returned by Read.
	Commit(ctx context.Context, batch message.Batch) error
	Close(ctx context.Context) error
}

// Processor transforms one batch into one result batch, which may hold fewer,
// more, or no records.
type Processor interface {
	Execute(ctx context.Context, batch message.Batch) (message.Batch, error)
	Close(ctx context.Context) error
}

// Sink emits a batch to some external destination. Output may fail; failure
// handling is governed by RetryPolicy when the plugin implements it, and by
// the runtime's drop-and-count policy otherwise.
type Sink interface {
	Write(ctx context.Context, batch message.Batch) error
	Close(ctx context.Context) error
}

// RetryPolicyProvider is optionally implemented by a Sink to declare its own
// retry policy. Plugins that don't implement it
// get the runtime's default: one attempt, log-and-count on failure.
type RetryPolicyProvider interface {
	RetryPolicy() RetryPolicy
}

// RetryPolicy bounds the runtime's backoff retry loop around a sink write.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Drainable is optionally implemented by a Buffer so the runtime can report
// how many records were still queued when a grace-period shutdown forced it
// closed. A Buffer that doesn't implement it is assumed empty for
// counting purposes.
type Drainable interface {
	Len() int
}
