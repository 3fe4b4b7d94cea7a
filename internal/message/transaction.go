package message

import "context"

// AckFunc acknowledges delivery of a Transaction's batch: a nil error means
// the batch was fully and successfully delivered; non-nil means it should be
// considered failed (logged and counted, never retried by the acknowledger
// itself).
type AckFunc func(ctx context.Context, err error) error

// Transaction associates a Batch with the means to acknowledge it, so the
// batch can cross buffer -> worker-pool -> sink-fan-out boundaries without
// losing the link back to whoever must be told the outcome (the Buffer's
// Commit, ultimately). Mirrors the teacher's internal/message.Transaction.
type Transaction struct {
	Payload Batch
	ack     AckFunc
}

// NewTransaction pairs a batch with its acknowledgement function.
func NewTransaction(payload Batch, ack AckFunc) Transaction {
	return Transaction{Payload: payload, ack: ack}
}

// Ack invokes the transaction's acknowledgement function, if any.
func (t Transaction) Ack(ctx context.Context, err error) error {
	if t.ack == nil {
		return nil
	}
	return t.ack(ctx, err)
}
