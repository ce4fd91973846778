package live

import (
	"context"
	"sync"
)

// Subscription is a stream of snapshots. Each snapshot fully replaces the
// previous one: the channel holds at most one value and a newer snapshot
// evicts an undelivered older one.
type Subscription[T any] struct {
	ch     chan T
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSubscription[T any](cancel context.CancelFunc) *Subscription[T] {
	return &Subscription[T]{
		ch:     make(chan T, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// C returns the snapshot channel. It is closed once the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed after the subscription has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the subscription and waits for it to wind down. It is safe to
// call more than once.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// deliver must only be called from the goroutine that owns the subscription.
func (s *Subscription[T]) deliver(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// finish closes the channel; called once by the owning goroutine on exit.
func (s *Subscription[T]) finish() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}
