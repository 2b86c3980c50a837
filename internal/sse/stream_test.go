package sse

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a concurrency-safe flushing ResponseWriter.
type recorder struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	body    strings.Builder
	failErr error
}

func newRecorder() *recorder { return &recorder{header: make(http.Header)} }

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *recorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return 0, r.failErr
	}
	return r.body.Write(b)
}

func (r *recorder) Flush() {}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func (r *recorder) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

type noFlush struct{ http.ResponseWriter }

func runAsync(s *Stream, ctx context.Context) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		s.Run(ctx)
	}()
	return finished
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestOpenWritesHeaders(t *testing.T) {
	rec := newRecorder()
	s, err := Open(rec, Options{Channel: "test"})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, StateOpening, s.State())
}

func TestOpenRequiresFlusher(t *testing.T) {
	_, err := Open(noFlush{newRecorder()}, Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRecordsQueuedBeforeRunAreWrittenInOrder(t *testing.T) {
	rec := newRecorder()
	s, err := Open(rec, Options{Channel: "test"})
	require.NoError(t, err)

	require.NoError(t, s.SendEvent("ready", struct{}{}))
	require.NoError(t, s.Send(map[string]string{"body": "one"}))
	require.NoError(t, s.Send(map[string]string{"body": "two"}))

	ctx, cancel := context.WithCancel(context.Background())
	finished := runAsync(s, ctx)

	require.Eventually(t, func() bool {
		return strings.Count(rec.String(), "\n\n") == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	waitFor(t, finished)

	want := "event: ready\ndata: {}\n\n" +
		"data: {\"body\":\"one\"}\n\n" +
		"data: {\"body\":\"two\"}\n\n"
	assert.Equal(t, want, rec.String())
}

func TestHeartbeat(t *testing.T) {
	rec := newRecorder()
	s, err := Open(rec, Options{Channel: "test", Heartbeat: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runAsync(s, ctx)

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), ": heartbeat\n\n")
	}, time.Second, 5*time.Millisecond)
}

func TestDisconnectClosesOnce(t *testing.T) {
	rec := newRecorder()
	s, err := Open(rec, Options{Channel: "test"})
	require.NoError(t, err)

	var teardowns atomic.Int32
	s.OnClose(func() { teardowns.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	finished := runAsync(s, ctx)
	require.Eventually(t, func() bool { return s.State() == StateStreaming }, time.Second, time.Millisecond)

	cancel()
	waitFor(t, finished)
	s.Close()

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, int32(1), teardowns.Load())
	assert.ErrorIs(t, s.Send("late"), ErrClosed)
}

func TestConcurrentCloseRunsTeardownOnce(t *testing.T) {
	s, err := Open(newRecorder(), Options{Channel: "test"})
	require.NoError(t, err)

	var teardowns atomic.Int32
	s.OnClose(func() { teardowns.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), teardowns.Load())
}

func TestTeardownRunsInReverseOrder(t *testing.T) {
	s, err := Open(newRecorder(), Options{Channel: "test"})
	require.NoError(t, err)

	var order []string
	s.OnClose(func() { order = append(order, "first") })
	s.OnClose(func() { order = append(order, "second") })
	s.Close()

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestOnCloseAfterCloseRunsImmediately(t *testing.T) {
	s, err := Open(newRecorder(), Options{Channel: "test"})
	require.NoError(t, err)
	s.Close()

	ran := false
	s.OnClose(func() { ran = true })
	assert.True(t, ran)
}

func TestFailedWriteCloses(t *testing.T) {
	rec := newRecorder()
	s, err := Open(rec, Options{Channel: "test"})
	require.NoError(t, err)

	var teardowns atomic.Int32
	s.OnClose(func() { teardowns.Add(1) })

	finished := runAsync(s, context.Background())
	rec.fail(errors.New("broken pipe"))
	require.NoError(t, s.Send("x"))

	waitFor(t, finished)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, int32(1), teardowns.Load())
}

func TestFullBufferClosesStream(t *testing.T) {
	s, err := Open(newRecorder(), Options{Channel: "test", BufferSize: 2})
	require.NoError(t, err)

	require.NoError(t, s.Send(1))
	require.NoError(t, s.Send(2))

	assert.ErrorIs(t, s.Send(3), ErrSlowConsumer)
	assert.Equal(t, StateClosed, s.State())
	waitFor(t, s.Done())
}

func TestRunAfterCloseReturnsImmediately(t *testing.T) {
	s, err := Open(newRecorder(), Options{Channel: "test"})
	require.NoError(t, err)
	s.Close()

	waitFor(t, runAsync(s, context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "closed", StateClosed.String())
}
