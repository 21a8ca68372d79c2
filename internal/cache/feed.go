// Package cache provides the replay-latest feed behind the places and
// bookings services: one owned collection snapshot plus fan-out to
// subscribers.
package cache

import (
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Subscription receives the current snapshot on attach and every replacement
// afterwards. Delivered slices are private copies; mutating them never
// touches the owned collection.
type Subscription[T any] struct {
	C    chan []T
	done chan struct{}
}

// Done is closed when the subscription is detached or the feed closes.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// send delivers without blocking: when the buffer is full the oldest pending
// snapshot is dropped, so a slow subscriber always converges to the latest
// state.
func (s *Subscription[T]) send(list []T, log *zap.Logger) {
	for {
		select {
		case s.C <- list:
			return
		default:
		}
		select {
		case <-s.C:
			log.Warn("slow feed subscriber, dropping stale snapshot")
		default:
		}
	}
}

// Feed owns the last committed collection and republishes it on every
// replacement. The owned value is only ever swapped wholesale.
type Feed[T any] struct {
	log *zap.Logger

	mu      sync.Mutex
	current []T
	subs    map[*Subscription[T]]struct{}
	closed  bool
}

// NewFeed constructs an empty feed.
func NewFeed[T any](log *zap.Logger) *Feed[T] {
	return &Feed[T]{log: log, subs: make(map[*Subscription[T]]struct{})}
}

// Snapshot returns a copy of the current collection.
func (f *Feed[T]) Snapshot() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.current)
}

// Replace swaps the owned collection and publishes it to all subscribers.
func (f *Feed[T]) Replace(list []T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.current = clone(list)
	for sub := range f.subs {
		sub.send(clone(f.current), f.log)
	}
}

// Subscribe attaches a consumer. The current snapshot is delivered
// immediately, so a late subscriber does not wait for the next mutation.
func (f *Feed[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		C:    make(chan []T, subscriberBuffer),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(sub.done)
		return sub
	}
	f.subs[sub] = struct{}{}
	sub.send(clone(f.current), f.log)
	return sub
}

// Unsubscribe detaches a consumer. Safe to call twice.
func (f *Feed[T]) Unsubscribe(sub *Subscription[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	close(sub.done)
}

// Close detaches every subscriber. The feed accepts no publishes afterwards.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		close(sub.done)
	}
	f.subs = make(map[*Subscription[T]]struct{})
}

func clone[T any](list []T) []T {
	out := make([]T, len(list))
	copy(out, list)
	return out
}
