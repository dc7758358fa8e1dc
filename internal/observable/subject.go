// Package observable provides a replay-latest subject: subscribers get the current value
// on subscription and every published value afterwards, in publish order.
package observable

import (
	"sync"
	"sync/atomic"
)

// Subject holds the latest value of T and fans it out to subscribers.
//
// Publish calls subscribers synchronously and one publish at a time, so every subscriber
// sees the same strictly ordered sequence. A subscriber may read Value but must not
// publish to the same subject from inside its callback.
type Subject[T any] struct {
	latest atomic.Pointer[T]

	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

// New constructs a subject seeded with initial.
func New[T any](initial T) *Subject[T] {
	s := &Subject[T]{subs: make(map[int]func(T))}
	s.latest.Store(&initial)
	return s
}

// Value returns the latest published value.
func (s *Subject[T]) Value() T {
	return *s.latest.Load()
}

// Publish stores v and delivers it to every subscriber.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest.Store(&v)
	for _, id := range s.order() {
		s.subs[id](v)
	}
}

// Subscribe registers fn, immediately replays the latest value to it and returns
// a function that removes the subscription.
func (s *Subject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	fn(*s.latest.Load())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Len returns the number of active subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// order returns subscriber ids in registration order.
func (s *Subject[T]) order() []int {
	ids := make([]int, 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if _, ok := s.subs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
