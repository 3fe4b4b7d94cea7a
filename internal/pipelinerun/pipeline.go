// Package pipelinerun implements the Pipeline Runtime (C7): the
// source thread, processor worker pool, and sink fan-out that execute one
// built pipeline, plus its cooperative graceful shutdown.
package pipelinerun

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/metrics"
)

// errStagesFailed marks a transaction whose batch a processor stage
// dropped, so its ack declines to commit it.
var errStagesFailed = errors.New("batch dropped by a failing stage")

// Stage is one processor position in the chain. A stage declaring
// single-thread affinity gets one instance per worker;
// otherwise every worker shares Shared, which must be safe for concurrent
// use.
type Stage struct {
	Name      string
	Shared    component.Processor
	PerWorker []component.Processor
}

func (s Stage) instanceFor(worker int) component.Processor {
	if s.Shared != nil {
		return s.Shared
	}
	return s.PerWorker[worker]
}

func (s Stage) allInstances() []component.Processor {
	if s.Shared != nil {
		return []component.Processor{s.Shared}
	}
	return s.PerWorker
}

// SinkSpec pairs a sink with the retry policy the runtime applies around
// its Write.
type SinkSpec struct {
	Name   string
	Sink   component.Sink
	Policy component.RetryPolicy
}

// DefaultSinkRetryPolicy is used for a sink that doesn't implement
// component.RetryPolicyProvider: one attempt, log-and-count on failure.
func DefaultSinkRetryPolicy() component.RetryPolicy {
	return component.RetryPolicy{MaxAttempts: 1}
}

// Pipeline is one runnable, built pipeline: a source writing into a buffer,
// a fixed worker pool reading from it through an ordered stage chain, and a
// sink fan-out.
type Pipeline struct {
	Name           string
	Source         component.Source
	Buffer         component.Buffer
	Stages         []Stage
	Sinks          []SinkSpec
	Workers        int
	ReadBatchDelay time.Duration

	Log     log.Modular
	Metrics *metrics.Registry

	runCtx  context.Context
	cancel  context.CancelFunc
	stopSig chan struct{}

	sourceErr  error
	sourceDone chan struct{}
	workersWG  sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

// Start launches the source and the worker pool. It returns once everything
// has been spawned; it does not block until shutdown (use Wait for that).
func (p *Pipeline) Start(ctx context.Context) error {
	var startErr error
	p.startOnce.Do(func() {
		if p.Workers <= 0 {
			p.Workers = 1
		}
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.stopSig = make(chan struct{})
		p.sourceDone = make(chan struct{})
		p.started = true

		go func() {
			defer close(p.sourceDone)
			p.sourceErr = p.Source.Start(p.runCtx, p.Buffer)
		}()

		for i := 0; i < p.Workers; i++ {
			p.workersWG.Add(1)
			go p.workerLoop(i)
		}
	})
	return startErr
}

// Wait blocks until every worker has exited and the source has returned.
// Workers exit on Stop, on a closed buffer, or when the context given to
// Start is cancelled; a source that returns, with or without an error, does
// not end them.
func (p *Pipeline) Wait() {
	if !p.started {
		return
	}
	p.workersWG.Wait()
	<-p.sourceDone
}

// workerLoop implements the per-worker read/process/fan-out/ack cycle.
func (p *Pipeline) workerLoop(idx int) {
	defer p.workersWG.Done()
	for {
		select {
		case <-p.runCtx.Done():
			return
		default:
		}

		batch, err := p.Buffer.Read(p.runCtx, p.ReadBatchDelay)
		if err != nil {
			if errors.Is(err, component.ErrBufferClosed) || p.runCtx.Err() != nil {
				return
			}
			p.Log.Warnf("pipeline %s worker %d: buffer read failed: %v", p.Name, idx, err)
			continue
		}

		if len(batch) == 0 {
			select {
			case <-p.stopSig:
				return
			default:
			}
			continue
		}

		txn := message.NewTransaction(batch, func(ctx context.Context, ackErr error) error {
			if ackErr != nil {
				return nil
			}
			return p.Buffer.Commit(ctx, batch)
		})

		processed, ok := p.runStages(idx, batch)
		if ok {
			p.fanOut(idx, processed)
		}

		ackErr := error(nil)
		if !ok {
			ackErr = errStagesFailed
		}
		if err := txn.Ack(p.runCtx, ackErr); err != nil {
			p.Log.Warnf("pipeline %s worker %d: commit failed: %v", p.Name, idx, err)
		}
	}
}

// runStages passes batch through every stage in order. A
// failing stage drops the batch for this worker and continues the loop
// rather than stopping the pipeline.
func (p *Pipeline) runStages(idx int, batch message.Batch) (message.Batch, bool) {
	current := batch
	for stageIdx, stage := range p.Stages {
		out, err := stage.instanceFor(idx).Execute(p.runCtx, current)
		if err != nil {
			perr := &component.ProcessorError{Stage: stageIdx, Cause: err}
			p.Log.Errorf("pipeline %s worker %d: %v", p.Name, idx, perr)
			if p.Metrics != nil {
				p.Metrics.RecordsDropped.WithLabelValues(p.Name, "processor-error").Add(float64(len(current)))
			}
			return nil, false
		}
		current = out
	}
	return current, true
}

// fanOut writes batch to every sink sequentially; a failing sink is logged
// and counted but never stops delivery to the remaining sinks.
func (p *Pipeline) fanOut(idx int, batch message.Batch) {
	for sinkIdx, spec := range p.Sinks {
		if err := writeWithRetry(p.runCtx, spec.Sink, batch, spec.Policy); err != nil {
			serr := &component.SinkError{SinkIndex: sinkIdx, Cause: err}
			p.Log.Errorf("pipeline %s worker %d: %v", p.Name, idx, serr)
			if p.Metrics != nil {
				p.Metrics.SinkErrors.WithLabelValues(p.Name, spec.Name).Inc()
				p.Metrics.RecordsDropped.WithLabelValues(p.Name, "sink-error").Add(float64(len(batch)))
			}
		}
	}
}

// Stop signals the source to cease producing, waits up to graceDeadline for
// the buffer to drain and workers to exit, then force-cancels and closes
// every component.
func (p *Pipeline) Stop(ctx context.Context, graceDeadline time.Duration) error {
	var stopErr error
	p.stopOnce.Do(func() {
		if !p.started {
			return
		}
		if err := p.Source.Stop(ctx); err != nil {
			p.Log.Warnf("pipeline %s: source stop: %v", p.Name, err)
		}
		close(p.stopSig)

		drained := make(chan struct{})
		go func() {
			p.workersWG.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-time.After(graceDeadline):
			if d, ok := p.Buffer.(component.Drainable); ok {
				if n := d.Len(); n > 0 && p.Metrics != nil {
					p.Metrics.RecordsDropped.WithLabelValues(p.Name, "grace-exhausted").Add(float64(n))
				}
			}
			p.cancel()
			<-drained
		}

		<-p.sourceDone
		if p.sourceErr != nil {
			p.Log.Warnf("pipeline %s: source exited with error: %v", p.Name, p.sourceErr)
		}

		if err := p.Buffer.Close(ctx); err != nil {
			p.Log.Warnf("pipeline %s: buffer close: %v", p.Name, err)
		}
		for _, stage := range p.Stages {
			for _, inst := range stage.allInstances() {
				if err := inst.Close(ctx); err != nil {
					p.Log.Warnf("pipeline %s: stage %s close: %v", p.Name, stage.Name, err)
				}
			}
		}
		for _, spec := range p.Sinks {
			if err := spec.Sink.Close(ctx); err != nil {
				p.Log.Warnf("pipeline %s: sink %s close: %v", p.Name, spec.Name, err)
			}
		}
	})
	return stopErr
}

func writeWithRetry(ctx context.Context, sink component.Sink, batch message.Batch, policy component.RetryPolicy) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := policy.InitialInterval

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			if policy.MaxInterval > 0 && wait < policy.MaxInterval {
				wait *= 2
				if wait > policy.MaxInterval {
					wait = policy.MaxInterval
				}
			}
		}
		if err := sink.Write(ctx, batch); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// RetryPolicyFor resolves the policy the runtime applies to sink, preferring
// one it declares itself.
func RetryPolicyFor(sink component.Sink) component.RetryPolicy {
	if provider, ok := sink.(component.RetryPolicyProvider); ok {
		return provider.RetryPolicy()
	}
	return DefaultSinkRetryPolicy()
}
