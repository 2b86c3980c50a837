// Package fanout provides the in-process publish/subscribe primitives behind
// the real-time chat channels: a topic-keyed listener registry and a bounded
// history buffer.
package fanout

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/commune/backend/internal/metrics"
)

// Listener receives events published to the topic it is subscribed to.
// Listeners are invoked synchronously by Publish and must not block. A
// non-nil error marks the listener as dead and removes it from the registry.
type Listener[E any] func(event E) error

type subscription[K comparable, E any] struct {
	key    K
	listen Listener[E]
	active atomic.Bool
}

// Registry maps topic keys to the set of listeners currently subscribed to
// them. It is safe for concurrent use.
//
// Publishes are serialized so every listener observes events in the order
// Publish was called. Listeners run outside the map lock and may therefore
// unsubscribe themselves, but must not call Publish on the same registry.
type Registry[K comparable, E any] struct {
	name string

	dispatch sync.Mutex

	mu     sync.Mutex
	topics map[K]map[*subscription[K, E]]struct{}
}

// NewRegistry creates an empty registry. The name labels logs and metrics.
func NewRegistry[K comparable, E any](name string) *Registry[K, E] {
	return &Registry[K, E]{
		name:   name,
		topics: make(map[K]map[*subscription[K, E]]struct{}),
	}
}

// Subscribe registers listen under key. The returned function removes
// exactly that listener; calling it more than once is a no-op.
func (r *Registry[K, E]) Subscribe(key K, listen Listener[E]) (unsubscribe func()) {
	sub := &subscription[K, E]{key: key, listen: listen}
	sub.active.Store(true)

	r.mu.Lock()
	set, ok := r.topics[key]
	if !ok {
		set = make(map[*subscription[K, E]]struct{})
		r.topics[key] = set
	}
	set[sub] = struct{}{}
	r.mu.Unlock()
	metrics.FanoutListeners.WithLabelValues(r.name).Inc()

	return func() { r.remove(sub) }
}

// Publish delivers event to every listener subscribed to any of keys and
// returns the number of successful deliveries. Duplicate keys are collapsed
// so a listener is invoked at most once per call. Failing listeners are
// logged and dropped; the failure never reaches the caller.
func (r *Registry[K, E]) Publish(event E, keys ...K) int {
	r.dispatch.Lock()
	defer r.dispatch.Unlock()

	delivered := 0
	for i, key := range keys {
		if containsKey(keys[:i], key) {
			continue
		}
		for _, sub := range r.listeners(key) {
			// Unsubscribed after the snapshot was taken.
			if !sub.active.Load() {
				continue
			}
			if err := sub.listen(event); err != nil {
				slog.Warn("fanout: listener failed, removing",
					slog.String("registry", r.name),
					slog.Any("error", err),
				)
				metrics.FanoutDeliveries.WithLabelValues(r.name, "failed").Inc()
				r.remove(sub)
				continue
			}
			metrics.FanoutDeliveries.WithLabelValues(r.name, "delivered").Inc()
			delivered++
		}
	}
	return delivered
}

// Len reports the number of listeners subscribed to key.
func (r *Registry[K, E]) Len(key K) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[key])
}

// Topics reports the number of topics with at least one listener.
func (r *Registry[K, E]) Topics() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func (r *Registry[K, E]) listeners(key K) []*subscription[K, E] {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.topics[key]
	if len(set) == 0 {
		return nil
	}
	subs := make([]*subscription[K, E], 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	return subs
}

// remove drops sub from its topic and deletes the topic once it is empty.
func (r *Registry[K, E]) remove(sub *subscription[K, E]) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[sub.key]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(r.topics, sub.key)
	}
	metrics.FanoutListeners.WithLabelValues(r.name).Dec()
}

func containsKey[K comparable](keys []K, key K) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
