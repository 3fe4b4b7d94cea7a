package stdio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/message"
)

type captureBuffer struct {
	records message.Batch
}

func (c *captureBuffer) Write(_ context.Context, batch message.Batch) error {
	c.records = append(c.records, batch...)
	return nil
}
func (c *captureBuffer) Read(context.Context, time.Duration) (message.Batch, error) { return nil, nil }
func (c *captureBuffer) Commit(context.Context, message.Batch) error                { return nil }
func (c *captureBuffer) Close(context.Context) error                                { return nil }

func TestLineSource_EmitsOneRecordPerLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	src := newLineSource(f)
	src.closeFile = f

	buf := &captureBuffer{}
	require.NoError(t, src.Start(context.Background(), buf))
	require.NoError(t, src.Stop(context.Background()))

	require.Len(t, buf.records, 3)
	assert.Equal(t, "one", buf.records[0].Payload)
	assert.Equal(t, "two", buf.records[1].Payload)
	assert.Equal(t, "three", buf.records[2].Payload)
}

func TestWriterSink_WritesOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	sink := &writerSink{w: f, closeFile: f}
	batch := message.Batch{
		message.NewRecord("hello", message.EventTypeLog),
		message.NewRecord("world", message.EventTypeLog),
	}
	require.NoError(t, sink.Write(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, splitLines(string(raw)))
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
