// Package state provides mutable store objects that can be passed to islands
// as props. A store keeps one identity for its whole lifetime, so the prop
// store never merges two stores that happen to hold equal values.
package state

import (
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
)

// Unsubscribe removes a subscription.
type Unsubscribe func()

// Subscriber receives value updates.
type Subscriber[T any] func(T)

// Observable is the type-erased view of a store used by the prop store.
type Observable interface {
	// ID is stable for the lifetime of the store.
	ID() string
	GetAny() any
	SubscribeAny(func(any)) Unsubscribe
}

type subEntry[T any] struct {
	id uint64
	fn Subscriber[T]
}

var storeSeq atomic.Uint64

// Store holds a value of type T and notifies subscribers on change.
type Store[T any] struct {
	mu          sync.RWMutex
	id          string
	value       T
	subscribers []subEntry[T]
	nextSubID   uint64
}

// NewStore creates a store with an initial value.
//
//	count := state.NewStore(0)
//	count.Update(func(v int) int { return v + 1 })
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{
		id:        "s" + strconv.FormatUint(storeSeq.Add(1), 36),
		value:     initial,
		nextSubID: 1,
	}
}

// ID returns the store's identity.
func (s *Store[T]) ID() string {
	return s.id
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// GetAny implements Observable.
func (s *Store[T]) GetAny() any {
	return s.Get()
}

// Set replaces the value and notifies subscribers when it changed.
func (s *Store[T]) Set(value T) {
	s.Update(func(T) T { return value })
}

// Update applies fn to the current value.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	next := fn(s.value)
	if equal(s.value, next) {
		s.mu.Unlock()
		return
	}
	s.value = next
	subs := make([]subEntry[T], len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}

// Subscribe registers fn for value changes.
func (s *Store[T]) Subscribe(fn Subscriber[T]) Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subEntry[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
	}
}

// SubscribeAny implements Observable.
func (s *Store[T]) SubscribeAny(fn func(any)) Unsubscribe {
	return s.Subscribe(func(v T) { fn(v) })
}

// MarshalJSON serializes the current value only; identity stays server-side.
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Get())
}

func equal[T any](a, b T) bool {
	switch av := any(a).(type) {
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}
