// Package sessions holds the pieces shared by the speech and bot sessions:
// instance-owned signals and the error taxonomy.
package sessions

import "sync"

// Signal is a typed subscription point owned by a single session instance.
//
// Handlers run on the goroutine that emits, in subscription order. They must
// not block; the orchestrator only posts intents from them.
type Signal[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []signalHandler[T]
}

type signalHandler[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, signalHandler[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, h := range s.handlers {
				if h.id == id {
					s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit delivers value to every handler subscribed at the time of the call.
func (s *Signal[T]) Emit(value T) {
	s.mu.Lock()
	handlers := make([]signalHandler[T], len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h.fn(value)
	}
}

// Len reports the number of subscribed handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}
