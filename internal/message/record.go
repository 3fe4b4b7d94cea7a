// Package message defines the Record/Batch envelope that flows through a
// pipeline, and the Transaction wrapper that carries an acknowledgement path
// back to the component that produced it.
package message

import (
	"time"

	"github.com/google/uuid"
)

// EventType loosely classifies a Record's payload, mirroring the metadata
// every plugin contract is allowed to inspect without the core caring about
// the payload itself.
type EventType string

const (
	EventTypeLog   EventType = "log"
	EventTypeTrace EventType = "trace"
	EventTypeMetric EventType = "metric"
	EventTypeOther EventType = "other"
)

// Record is an opaque envelope carrying an event payload plus metadata. The
// core never inspects Payload; only plugins (codecs, processors) do.
type Record struct {
	ID        uuid.UUID
	Timestamp time.Time
	EventType EventType
	Key       string // partition/affinity key, set by sources that know one
	Payload   any
}

// NewRecord builds a Record stamped with a fresh ID and the current time.
func NewRecord(payload any, eventType EventType) Record {
	return Record{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		EventType: eventType,
		Payload:   payload,
	}
}

// WithKey returns a copy of the Record with its affinity key set.
func (r Record) WithKey(key string) Record {
	r.Key = key
	return r
}

// Batch is a group of Records read together from a Buffer; size is
// buffer-defined (GLOSSARY).
type Batch []Record
