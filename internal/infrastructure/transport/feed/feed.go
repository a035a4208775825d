// Package feed fans out snapshots to subscribers keyed by room.
//
// Delivery is coalescing: every subscriber runs its callback on its own
// goroutine and only ever sees the newest pending value, so a slow callback
// never blocks a publisher and never receives a stale snapshot after a newer
// one. Callers that need ordering across publishers must publish while holding
// the lock that protects the state the snapshot was taken from.
package feed

import "sync"

type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]*subscriber[T]
	nextID uint64
	closed bool
}

type subscriber[T any] struct {
	fn   func(T)
	mu   sync.Mutex
	val  T
	has  bool
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[uint64]*subscriber[T])}
}

// Subscribe registers fn under key and schedules initial as its first value.
// The returned function detaches the subscriber and may be called repeatedly.
func (h *Hub[T]) Subscribe(key string, initial T, fn func(T)) func() {
	s := &subscriber[T]{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	h.nextID++
	id := h.nextID
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]*subscriber[T])
	}
	h.subs[key][id] = s
	h.mu.Unlock()

	s.offer(initial)
	go s.run()

	return func() {
		h.mu.Lock()
		if room, ok := h.subs[key]; ok {
			delete(room, id)
			if len(room) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
		s.stop()
	}
}

// Publish offers v to every subscriber of key.
func (h *Hub[T]) Publish(key string, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs[key] {
		s.offer(v)
	}
}

// Keys returns the keys that currently have at least one subscriber.
func (h *Hub[T]) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.subs))
	for k := range h.subs {
		keys = append(keys, k)
	}
	return keys
}

func (h *Hub[T]) HasSubscribers(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key]) > 0
}

// Close detaches every subscriber. Later subscriptions are no-ops.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]map[uint64]*subscriber[T])
	h.closed = true
	h.mu.Unlock()

	for _, room := range subs {
		for _, s := range room {
			s.stop()
		}
	}
}

func (s *subscriber[T]) offer(v T) {
	s.mu.Lock()
	s.val = v
	s.has = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		v, has := s.val, s.has
		var zero T
		s.val, s.has = zero, false
		s.mu.Unlock()

		if !has {
			continue
		}

		select {
		case <-s.done:
			return
		default:
		}
		s.fn(v)
	}
}
