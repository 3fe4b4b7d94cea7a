package pipelinerun

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugins/buffer"
)

type noopLogger struct{}

func (noopLogger) With(...any) log.Modular { return noopLogger{} }
func (noopLogger) Errorf(string, ...any)   {}
func (noopLogger) Warnf(string, ...any)    {}
func (noopLogger) Infof(string, ...any)    {}
func (noopLogger) Debugf(string, ...any)   {}
func (noopLogger) Errorln(string)          {}
func (noopLogger) Warnln(string)           {}
func (noopLogger) Infoln(string)           {}
func (noopLogger) Debugln(string)          {}

// fakeSource writes its preloaded records into the buffer then idles until
// told to stop, mirroring a long-lived streaming source.
type fakeSource struct {
	records []message.Record
	stopCh  chan struct{}
	once    sync.Once
}

func newFakeSource(n int) *fakeSource {
	recs := make([]message.Record, n)
	for i := range recs {
		recs[i] = message.NewRecord(fmt.Sprintf("rec-%d", i), message.EventTypeLog)
	}
	return &fakeSource{records: recs, stopCh: make(chan struct{})}
}

func (s *fakeSource) Start(ctx context.Context, into component.Buffer) error {
	for _, rec := range s.records {
		if err := into.Write(ctx, message.Batch{rec}); err != nil {
			return err
		}
	}
	select {
	case <-s.stopCh:
	case <-ctx.Done():
	}
	return nil
}

func (s *fakeSource) Stop(ctx context.Context) error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

type identityProcessor struct{}

func (identityProcessor) Execute(ctx context.Context, batch message.Batch) (message.Batch, error) {
	return batch, nil
}
func (identityProcessor) Close(ctx context.Context) error { return nil }

type fakeSink struct {
	mu        sync.Mutex
	got       message.Batch
	failTimes int
	block     <-chan struct{}
}

func (s *fakeSink) Write(ctx context.Context, batch message.Batch) error {
	if s.failTimes > 0 {
		s.failTimes--
		return fmt.Errorf("simulated sink failure")
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, batch...)
	return nil
}
func (s *fakeSink) Close(ctx context.Context) error { return nil }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestPipeline_ProcessesAndDeliversAllRecords(t *testing.T) {
	src := newFakeSource(25)
	buf := buffer.New(100)
	sink := &fakeSink{}

	p := &Pipeline{
		Name:           "p1",
		Source:         src,
		Buffer:         buf,
		Stages:         []Stage{{Name: "noop", Shared: identityProcessor{}}},
		Sinks:          []SinkSpec{{Name: "out", Sink: sink, Policy: DefaultSinkRetryPolicy()}},
		Workers:        2,
		ReadBatchDelay: 20 * time.Millisecond,
		Log:            noopLogger{},
	}
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return sink.count() == 25 }, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop(context.Background(), time.Second))
	p.Wait()
}

func TestPipeline_SinkFailureDoesNotStopDelivery(t *testing.T) {
	src := newFakeSource(5)
	buf := buffer.New(100)
	failingSink := &fakeSink{failTimes: 1000}
	okSink := &fakeSink{}

	p := &Pipeline{
		Name:           "p2",
		Source:         src,
		Buffer:         buf,
		Stages:         []Stage{{Name: "noop", Shared: identityProcessor{}}},
		Sinks:          []SinkSpec{{Name: "bad", Sink: failingSink}, {Name: "good", Sink: okSink}},
		Workers:        1,
		ReadBatchDelay: 20 * time.Millisecond,
		Log:            noopLogger{},
	}
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return okSink.count() == 5 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, failingSink.count())

	require.NoError(t, p.Stop(context.Background(), time.Second))
	p.Wait()
}

func TestPipeline_StopIsIdempotent(t *testing.T) {
	src := newFakeSource(3)
	buf := buffer.New(10)
	sink := &fakeSink{}

	p := &Pipeline{
		Name:           "p3",
		Source:         src,
		Buffer:         buf,
		Stages:         []Stage{{Name: "noop", Shared: identityProcessor{}}},
		Sinks:          []SinkSpec{{Name: "out", Sink: sink}},
		Workers:        1,
		ReadBatchDelay: 10 * time.Millisecond,
		Log:            noopLogger{},
	}
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 10*time.Millisecond)

	err1 := p.Stop(context.Background(), time.Second)
	err2 := p.Stop(context.Background(), time.Second)
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	p.Wait()
}
