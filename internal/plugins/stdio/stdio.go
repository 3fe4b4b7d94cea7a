// Package stdio provides the trivial OS-stream plugins: stdin/file sources reading newline-delimited
// payloads, and stdout/file sinks writing them back out. Grounded on the
// teacher's own input/stdin.go + internal/impl/io/input_file.go, both of
// which use nothing but stdlib os/bufio for this exact job — no third-party
// library in the pack reads a line of stdin better than bufio.Scanner does.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the stdin/stdout/file plugins to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterSource("stdin", func(topology.PluginSpec) (component.Source, error) {
		return newLineSource(os.Stdin), nil
	})
	reg.RegisterSink("stdout", func(topology.PluginSpec) (component.Sink, error) {
		return &writerSink{w: os.Stdout}, nil
	})
	reg.RegisterSource("file", func(spec topology.PluginSpec) (component.Source, error) {
		path, ok := spec.Attributes["path"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("file source requires a \"path\" attribute")
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", path, err)
		}
		src := newLineSource(f)
		src.closeFile = f
		return src, nil
	})
	reg.RegisterSink("file", func(spec topology.PluginSpec) (component.Sink, error) {
		path, ok := spec.Attributes["path"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("file sink requires a \"path\" attribute")
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", path, err)
		}
		return &writerSink{w: f, closeFile: f}, nil
	})
}

// lineSource reads newline-delimited text from an io.Reader and emits one
// Record per line, matching the teacher's line-oriented stdin reader.
type lineSource struct {
	r         *os.File
	closeFile *os.File

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newLineSource(r *os.File) *lineSource {
	return &lineSource{r: r, stopCh: make(chan struct{})}
}

// Start implements component.Source: it scans lines until EOF, a stop
// signal, or the context is cancelled, writing each line as its own Record.
func (s *lineSource) Start(ctx context.Context, into component.Buffer) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		rec := message.NewRecord(line, message.EventTypeLog)
		if err := into.Write(ctx, message.Batch{rec}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Stop implements component.Source.
func (s *lineSource) Stop(context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.closeFile != nil {
		return s.closeFile.Close()
	}
	return nil
}

// writerSink writes each record's payload as a line to w, matching the
// teacher's output/stdout.go newline-per-message convention.
type writerSink struct {
	mu        sync.Mutex
	w         *os.File
	closeFile *os.File
}

// Write implements component.Sink.
func (s *writerSink) Write(ctx context.Context, batch message.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bw := bufio.NewWriter(s.w)
	for _, rec := range batch {
		if _, err := fmt.Fprintf(bw, "%v\n", rec.Payload); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Close implements component.Sink.
func (s *writerSink) Close(context.Context) error {
	if s.closeFile != nil {
		return s.closeFile.Close()
	}
	return nil
}

// RetryPolicy implements component.RetryPolicyProvider: local OS writes
// rarely benefit from retrying, but a single immediate retry covers a
// transient ENOSPC/EINTR without a real backoff delay.
func (s *writerSink) RetryPolicy() component.RetryPolicy {
	return component.RetryPolicy{MaxAttempts: 2, InitialInterval: 10 * time.Millisecond, MaxInterval: 10 * time.Millisecond}
}
