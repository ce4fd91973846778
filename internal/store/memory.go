package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// MemoryStore is a mutex-based in-memory ThreadStore. Every write happens
// under one lock section, which gives the same all-or-nothing behaviour as
// the Postgres transactions.
type MemoryStore struct {
	mu       sync.RWMutex
	threads  map[string]inquiry.Thread
	messages map[string][]inquiry.Message // thread ID -> messages in order
	now      func() time.Time
	log      zerolog.Logger
}

func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		threads:  make(map[string]inquiry.Thread),
		messages: make(map[string][]inquiry.Message),
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "thread-store").Logger(),
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// stamp returns the current time, never earlier than floor.
func (s *MemoryStore) stamp(floor time.Time) time.Time {
	now := s.now()
	if now.Before(floor) {
		return floor
	}
	return now
}

func (s *MemoryStore) CreateThread(ctx context.Context, thread inquiry.Thread, first inquiry.Message) (inquiry.Thread, inquiry.Message, error) {
	if err := ctx.Err(); err != nil {
		return inquiry.Thread{}, inquiry.Message{}, fmt.Errorf("create thread: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.threads[thread.ID]; exists {
		return inquiry.Thread{}, inquiry.Message{}, inquiry.Invalid("id", "thread already exists")
	}

	createdAt := s.stamp(time.Time{})
	thread.CreatedAt = createdAt
	thread.UpdatedAt = createdAt
	thread.LastMessage = inquiry.Preview(first.Text)
	thread.MessageCount = 1
	thread.Version = 1

	first.ThreadID = thread.ID
	first.Seq = 1
	first.CreatedAt = createdAt

	s.threads[thread.ID] = thread
	s.messages[thread.ID] = []inquiry.Message{first}
	s.log.Debug().Str("thread_id", thread.ID).Str("owner_id", thread.OwnerID).Msg("thread created")
	return thread, first, nil
}

func (s *MemoryStore) GetThread(_ context.Context, threadID string) (inquiry.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return inquiry.Thread{}, inquiry.ErrNotFound
	}
	return thread, nil
}

func (s *MemoryStore) ListThreads(_ context.Context, ownerID string) ([]inquiry.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]inquiry.Thread, 0, len(s.threads))
	for _, thread := range s.threads {
		if ownerID == "" || thread.OwnerID == ownerID {
			out = append(out, thread)
		}
	}
	inquiry.SortThreads(out)
	return out, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, threadID string) ([]inquiry.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[threadID]
	out := make([]inquiry.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, message inquiry.Message, next Transition) (inquiry.Thread, inquiry.Message, error) {
	if err := ctx.Err(); err != nil {
		return inquiry.Thread{}, inquiry.Message{}, fmt.Errorf("append message: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[message.ThreadID]
	if !ok {
		return inquiry.Thread{}, inquiry.Message{}, inquiry.ErrNotFound
	}
	status, err := next(thread.Status)
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, err
	}

	existing := s.messages[thread.ID]
	floor := thread.CreatedAt
	var lastSeq int64
	if n := len(existing); n > 0 {
		floor = existing[n-1].CreatedAt
		lastSeq = existing[n-1].Seq
	}
	message.Seq = lastSeq + 1
	message.CreatedAt = s.stamp(floor)

	thread.Status = status
	thread.LastMessage = inquiry.Preview(message.Text)
	thread.MessageCount++
	thread.Version++
	thread.UpdatedAt = message.CreatedAt

	s.messages[thread.ID] = append(existing, message)
	s.threads[thread.ID] = thread
	return thread, message, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, threadID string, next Transition) (inquiry.Thread, inquiry.Status, bool, error) {
	if err := ctx.Err(); err != nil {
		return inquiry.Thread{}, "", false, fmt.Errorf("update status: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return inquiry.Thread{}, "", false, inquiry.ErrNotFound
	}
	previous := thread.Status
	status, err := next(previous)
	if err != nil {
		return thread, previous, false, err
	}
	if status == previous {
		return thread, previous, false, nil
	}
	thread.Status = status
	thread.Version++
	thread.UpdatedAt = s.stamp(thread.UpdatedAt)
	s.threads[threadID] = thread
	return thread, previous, true, nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) (inquiry.Thread, error) {
	if err := ctx.Err(); err != nil {
		return inquiry.Thread{}, fmt.Errorf("delete thread: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return inquiry.Thread{}, inquiry.ErrNotFound
	}
	delete(s.threads, threadID)
	delete(s.messages, threadID)
	s.log.Debug().Str("thread_id", threadID).Msg("thread deleted")
	return thread, nil
}
