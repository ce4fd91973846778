// Package live keeps ordered thread and message snapshots in step with the
// store. Every change on the feed triggers a refetch for the subscriptions it
// concerns, and a resync marker triggers a refetch for all of them; the
// refetched snapshot replaces the previous one.
package live

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/feed"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/metrics"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/rbac"
)

// Source is the read side of the thread store.
type Source interface {
	ListThreads(ctx context.Context, ownerID string) ([]inquiry.Thread, error)
	ListMessages(ctx context.Context, threadID string) ([]inquiry.Message, error)
}

// Scope selects which threads a list subscription follows. The zero value
// follows every thread.
type Scope struct {
	OwnerID string
}

// ScopeFor returns every thread for roles allowed to read all of them and the
// caller's own otherwise.
func ScopeFor(id inquiry.Identity) Scope {
	if rbac.Can(id.Role, rbac.ActionReadAll) {
		return Scope{}
	}
	return Scope{OwnerID: id.UserID}
}

func (s Scope) covers(change inquiry.Change) bool {
	return s.OwnerID == "" || s.OwnerID == change.OwnerID
}

type Synchronizer struct {
	source Source
	bus    feed.Bus
	log    zerolog.Logger
}

func NewSynchronizer(source Source, bus feed.Bus, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		source: source,
		bus:    bus,
		log:    log.With().Str("component", "live-sync").Logger(),
	}
}

// SubscribeThreads streams the thread list for scope, newest first. The first
// snapshot is loaded before returning, so a store failure surfaces here.
func (s *Synchronizer) SubscribeThreads(ctx context.Context, scope Scope) (*Subscription[[]inquiry.Thread], error) {
	load := func(ctx context.Context) ([]inquiry.Thread, error) {
		threads, err := s.source.ListThreads(ctx, scope.OwnerID)
		if err != nil {
			return nil, err
		}
		inquiry.SortThreads(threads)
		return threads, nil
	}
	return subscribe(ctx, s, "threads", scope.covers, nil, load)
}

// SubscribeMessages streams the messages of one thread in (createdAt, seq)
// order. Once the thread is deleted the stream carries an empty list.
func (s *Synchronizer) SubscribeMessages(ctx context.Context, threadID string) (*Subscription[[]inquiry.Message], error) {
	relevant := func(change inquiry.Change) bool {
		return change.ThreadID == threadID
	}
	cleared := func(change inquiry.Change) ([]inquiry.Message, bool) {
		if change.Kind == inquiry.ChangeDeleted {
			return []inquiry.Message{}, true
		}
		return nil, false
	}
	load := func(ctx context.Context) ([]inquiry.Message, error) {
		messages, err := s.source.ListMessages(ctx, threadID)
		if err != nil {
			return nil, err
		}
		inquiry.SortMessages(messages)
		return messages, nil
	}
	return subscribe(ctx, s, "messages", relevant, cleared, load)
}

// subscribe wires a feed subscription to a snapshot loader. Generic methods
// are not allowed, so this is a function taking the synchronizer.
func subscribe[T any](
	ctx context.Context,
	s *Synchronizer,
	kind string,
	relevant func(inquiry.Change) bool,
	override func(inquiry.Change) (T, bool),
	load func(context.Context) (T, error),
) (*Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, stopFeed, err := s.bus.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w: %w", kind, inquiry.ErrTransport, err)
	}

	initial, err := load(ctx)
	if err != nil {
		stopFeed()
		cancel()
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}

	sub := newSubscription[T](cancel)
	sub.deliver(initial)
	metrics.LiveSubscriptions.Inc()

	log := s.log.With().Str("stream", kind).Logger()
	go func() {
		defer metrics.LiveSubscriptions.Dec()
		defer sub.finish()
		defer stopFeed()

		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					log.Debug().Msg("change feed closed")
					return
				}
				if change.Kind != inquiry.ChangeResync && !relevant(change) {
					continue
				}
				if override != nil {
					if snapshot, ok := override(change); ok {
						sub.deliver(snapshot)
						continue
					}
				}
				drain(changes)

				snapshot, err := load(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					metrics.LiveRefreshErrors.Inc()
					log.Warn().Err(err).Str("thread_id", change.ThreadID).Msg("refresh failed; keeping previous snapshot")
					continue
				}
				sub.deliver(snapshot)
			}
		}
	}()
	return sub, nil
}

// drain discards changes already queued; the refetch that follows covers them.
func drain(changes <-chan inquiry.Change) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
