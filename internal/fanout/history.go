package fanout

import "sync"

// DefaultHistorySize is the number of broadcast messages kept for replay.
const DefaultHistorySize = 100

// History is a fixed-capacity FIFO of recent events. When full, recording a
// new event evicts the oldest one. It is safe for concurrent use.
type History[E any] struct {
	mu    sync.RWMutex
	buf   []E
	start int
	size  int
}

// NewHistory creates a history holding at most capacity events. A
// non-positive capacity falls back to DefaultHistorySize.
func NewHistory[E any](capacity int) *History[E] {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History[E]{buf: make([]E, capacity)}
}

// Record appends event, evicting the oldest entry if the buffer is full.
func (h *History[E]) Record(event E) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = event
		h.size++
		return
	}
	h.buf[h.start] = event
	h.start = (h.start + 1) % len(h.buf)
}

// Replay calls emit for every retained event, oldest first. Replay stops at
// the first error emit returns and reports it.
func (h *History[E]) Replay(emit func(E) error) error {
	for _, event := range h.Snapshot() {
		if err := emit(event); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of the retained events, oldest first.
func (h *History[E]) Snapshot() []E {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]E, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Len reports the number of retained events.
func (h *History[E]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap reports the buffer capacity.
func (h *History[E]) Cap() int {
	return len(h.buf)
}
