// Package sse binds a fan-out subscription to the lifetime of one
// Server-Sent Events response.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/commune/backend/internal/metrics"
)

const (
	DefaultHeartbeat  = 30 * time.Second
	DefaultBufferSize = 256
)

var (
	// ErrClosed is returned when sending to a stream that has been torn down.
	ErrClosed = errors.New("sse: stream closed")
	// ErrSlowConsumer is returned when a stream's delivery buffer is full.
	// The stream is closed before the error is returned.
	ErrSlowConsumer = errors.New("sse: delivery buffer full")
	// ErrUnsupported is returned by Open when the writer cannot flush.
	ErrUnsupported = errors.New("sse: streaming not supported")
)

// State is a stream lifecycle stage.
type State int32

const (
	StateOpening State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a stream.
type Options struct {
	// Channel labels the stream in metrics.
	Channel    string
	Heartbeat  time.Duration
	BufferSize int
}

// Stream is a single open event-stream response.
//
// Records are queued by Send/SendEvent from any goroutine and written only by
// Run, on the handler goroutine. Close is safe to call from anywhere and runs
// the registered teardown exactly once.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	opts    Options

	queue chan []byte
	done  chan struct{}
	state atomic.Int32

	mu      sync.Mutex
	onClose []func()
}

// Open writes the event-stream headers and returns a stream in the opening
// state. Records sent before Run is called are buffered and written first.
func Open(w http.ResponseWriter, opts Options) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrUnsupported
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.StreamsActive.WithLabelValues(opts.Channel).Inc()

	return &Stream{
		w:       w,
		flusher: flusher,
		opts:    opts,
		queue:   make(chan []byte, opts.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// State reports the current lifecycle stage.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Done is closed once the stream reaches the closed state.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// OnClose registers fn to run during teardown. Teardown functions run in
// reverse registration order. If the stream is already closed fn runs
// immediately.
func (s *Stream) OnClose(fn func()) {
	s.mu.Lock()
	if s.State() != StateClosed {
		s.onClose = append(s.onClose, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Send queues v as an unnamed `data:` record. It never blocks.
func (s *Stream) Send(v any) error {
	return s.SendEvent("", v)
}

// SendEvent queues v as a record with the given event name. An empty name
// produces a plain `data:` record.
func (s *Stream) SendEvent(event string, v any) error {
	record, err := encode(event, v)
	if err != nil {
		return err
	}
	return s.enqueue(record)
}

func (s *Stream) enqueue(record []byte) error {
	if s.State() == StateClosed {
		return ErrClosed
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.queue <- record:
		return nil
	default:
		s.Close()
		return ErrSlowConsumer
	}
}

// Run moves the stream to the streaming state and writes queued records and
// heartbeats until ctx is cancelled, a write fails, or Close is called. The
// stream is closed when Run returns.
func (s *Stream) Run(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(StateOpening), int32(StateStreaming)) {
		return
	}
	defer s.Close()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case record := <-s.queue:
			if err := s.write(record); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := s.write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
		}
	}
}

// Close transitions the stream to the closed state and runs teardown. Only
// the first caller performs the transition.
func (s *Stream) Close() {
	for {
		current := s.state.Load()
		if current == int32(StateClosed) {
			return
		}
		if s.state.CompareAndSwap(current, int32(StateClosed)) {
			break
		}
	}

	close(s.done)
	metrics.StreamsActive.WithLabelValues(s.opts.Channel).Dec()

	s.mu.Lock()
	teardown := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	for i := len(teardown) - 1; i >= 0; i-- {
		teardown[i]()
	}
}

func (s *Stream) write(record []byte) error {
	if _, err := s.w.Write(record); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func encode(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sse: encode record: %w", err)
	}

	var buf bytes.Buffer
	if event != "" {
		buf.WriteString("event: ")
		buf.WriteString(event)
		buf.WriteByte('\n')
	}
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}
