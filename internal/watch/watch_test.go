package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dyluth/hctorder/internal/archive"
)

func sampleEntry(sessionID string) *archive.Entry {
	return &archive.Entry{
		SessionID:     sessionID,
		ParticipantID: "001",
		HCTOrder:      "30 → 45 → 55",
		Order:         [3]int{30, 45, 55},
		LabNumber:     "4",
		Experimenter:  "Ana Lopez",
		GeneratedAtMs: time.Date(2026, 10, 14, 9, 45, 30, 0, time.UTC).UnixMilli(),
		Host:          "lab-pc-1",
		Artifacts:     []string{},
	}
}

type fakeSource struct {
	events chan *archive.Entry
	errors chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan *archive.Entry, 10), errors: make(chan error, 10)}
}

func (f *fakeSource) Events() <-chan *archive.Entry { return f.events }
func (f *fakeSource) Errors() <-chan error          { return f.errors }

// syncBuffer guards a bytes.Buffer written by the streaming goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatters(t *testing.T) {
	t.Run("defaultFormatter formats session events", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf, loc: time.UTC}
		require.NoError(t, f.FormatSession(sampleEntry("abc-123")))

		out := buf.String()
		assert.Contains(t, out, "[09:45:30]")
		assert.Contains(t, out, "Session generated")
		assert.Contains(t, out, "id=001")
		assert.Contains(t, out, "order=30 → 45 → 55")
		assert.Contains(t, out, `experimenter="Ana Lopez"`)
		assert.Contains(t, out, "host=lab-pc-1")
		assert.True(t, strings.HasSuffix(out, "\n"))
	})

	t.Run("defaultFormatter omits empty host and dashes empty lab", func(t *testing.T) {
		e := sampleEntry("abc")
		e.Host = ""
		e.LabNumber = ""
		var buf bytes.Buffer
		require.NoError(t, (&defaultFormatter{writer: &buf, loc: time.UTC}).FormatSession(e))
		assert.NotContains(t, buf.String(), "host=")
		assert.Contains(t, buf.String(), "lab=-")
	})

	t.Run("jsonFormatter writes one object per line", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&jsonFormatter{writer: &buf}).FormatSession(sampleEntry("abc-123")))

		var got archive.Entry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "abc-123", got.SessionID)
		assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	})
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputFormatDefault, "default": OutputFormatDefault, "json": OutputFormatJSON} {
		got, err := ParseOutputFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOutputFormat("yaml")
	assert.ErrorContains(t, err, "unknown format: yaml")
}

func TestStreamSessions(t *testing.T) {
	t.Run("writes events until the source closes", func(t *testing.T) {
		src := newFakeSource()
		src.events <- sampleEntry("s-1")
		src.events <- sampleEntry("s-2")
		close(src.events)

		var buf bytes.Buffer
		n, err := StreamSessions(context.Background(), src, &buf, OutputFormatJSON, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	})

	t.Run("logs and skips errors", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		src := newFakeSource()
		src.errors <- errors.New("bad payload")
		close(src.errors)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := StreamSessions(ctx, src, &syncBuffer{}, OutputFormatDefault, time.UTC, zap.New(core))
			assert.NoError(t, err)
		}()

		require.Eventually(t, func() bool { return logs.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
		cancel()
		<-done
		assert.Equal(t, "skipping session event", logs.All()[0].Message)
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n, err := StreamSessions(ctx, newFakeSource(), &bytes.Buffer{}, OutputFormatDefault, time.UTC, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStreamSessions_FromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := archive.NewRedis(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := r.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	out := &syncBuffer{}
	done := make(chan int)
	streamCtx, stop := context.WithCancel(ctx)
	go func() {
		n, _ := StreamSessions(streamCtx, sub, out, OutputFormatDefault, time.UTC, nil)
		done <- n
	}()

	require.NoError(t, r.Record(ctx, sampleEntry("s-1")))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "session=s-1") }, 3*time.Second, 10*time.Millisecond)
	stop()
	assert.Equal(t, 1, <-done)
}
