// Package feed carries thread change notifications from the writer to every
// live view, in-process or across instances through Redis Pub/Sub.
package feed

import (
	"context"
	"sync"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/metrics"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// changes are dropped for it. Dropped changes are replaced by a single
// ChangeResync, so the subscriber still learns that it missed something.
const subscriberBuffer = 16

// offer queues change without blocking. When ch is full the oldest queued
// change is evicted and a resync marker is queued instead of change. ch must
// have a single sender.
func offer(ch chan inquiry.Change, change inquiry.Change) (dropped bool) {
	select {
	case ch <- change:
		return false
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- inquiry.Change{Kind: inquiry.ChangeResync, At: change.At}:
	default:
	}
	metrics.FeedOverflows.Inc()
	return true
}

// Bus publishes thread changes and fans them out to subscribers.
type Bus interface {
	Publish(ctx context.Context, change inquiry.Change) error
	// Subscribe returns a channel of changes and a cancel func. The channel is
	// closed after cancel is called or ctx ends.
	Subscribe(ctx context.Context) (<-chan inquiry.Change, func(), error)
	Close() error
}

// LocalBus delivers changes to subscribers in the same process.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[int]chan inquiry.Change
	nextID int
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]chan inquiry.Change)}
}

func (b *LocalBus) Publish(_ context.Context, change inquiry.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		offer(ch, change)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan inquiry.Change, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan inquiry.Change, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}, nil
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
