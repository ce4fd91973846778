package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// Source is the read side of the thread store.
type Source interface {
	GetThread(ctx context.Context, threadID string) (inquiry.Thread, error)
	ListThreads(ctx context.Context, ownerID string) ([]inquiry.Thread, error)
}

// Service is the facade that tries the engine first and falls back to
// scanning the store.
type Service struct {
	engine Engine
	source Source
	log    zerolog.Logger

	mu         sync.RWMutex
	closed     bool
	ops        chan indexOp
	workerDone chan struct{}
	wg         sync.WaitGroup
	// versions is owned by the index worker.
	versions map[string]int64
}

// indexQueueSize bounds pending index updates; IndexThread blocks when full.
const indexQueueSize = 256

// NewService creates a search service. engine may be nil if Meilisearch is
// not configured.
func NewService(engine Engine, source Source, log zerolog.Logger) *Service {
	s := &Service{
		engine:   engine,
		source:   source,
		log:      log.With().Str("component", "search").Logger(),
		versions: make(map[string]int64),
	}
	if engine != nil {
		s.ops = make(chan indexOp, indexQueueSize)
		s.workerDone = make(chan struct{})
		go s.runIndexer()
	}
	return s
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if s.engineReady() {
		ids, total, err := s.engine.Search(q)
		if err == nil {
			threads, err := s.hydrate(ctx, ids)
			if err != nil {
				return Response{}, err
			}
			return Response{Threads: threads, Total: total, Query: q.Text, Engine: EngineMeili}, nil
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to store scan")
	}

	threads, err := s.source.ListThreads(ctx, q.OwnerID)
	if err != nil {
		return Response{}, fmt.Errorf("search threads: %w", err)
	}
	matched := inquiry.Project(threads, inquiry.Filter{Status: q.Status})
	matched = filterText(matched, q.Text)
	total := len(matched)
	return Response{Threads: page(matched, q.Offset, q.Limit), Total: total, Query: q.Text, Engine: EngineFallback}, nil
}

// hydrate loads threads for engine hits, skipping any deleted since indexing.
func (s *Service) hydrate(ctx context.Context, ids []string) ([]inquiry.Thread, error) {
	threads := make([]inquiry.Thread, 0, len(ids))
	for _, id := range ids {
		thread, err := s.source.GetThread(ctx, id)
		if errors.Is(err, inquiry.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load search hit %s: %w", id, err)
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func filterText(threads []inquiry.Thread, text string) []inquiry.Thread {
	needle := strings.ToLower(text)
	if needle == "" {
		return threads
	}
	out := threads[:0]
	for _, t := range threads {
		for _, field := range []string{t.Subject, t.LastMessage, t.OwnerName, t.OwnerEmail} {
			if strings.Contains(strings.ToLower(field), needle) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func page(threads []inquiry.Thread, offset, limit int) []inquiry.Thread {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 || offset >= len(threads) {
		return []inquiry.Thread{}
	}
	end := offset + limit
	if end > len(threads) {
		end = len(threads)
	}
	return threads[offset:end]
}

// IndexThread queues t for indexing and returns at once. Updates reach the
// engine one at a time, and a record older than one already sent is skipped.
func (s *Service) IndexThread(t inquiry.Thread) {
	if !s.engineReady() {
		return
	}
	record := RecordFromThread(t)
	s.enqueue(indexOp{record: record})
}

// DeleteThread queues removal of a thread from the index. Later updates for
// the same thread are ignored.
func (s *Service) DeleteThread(id string) {
	if !s.engineReady() {
		return
	}
	s.enqueue(indexOp{deleteID: id})
}

// ReindexAll pushes every stored thread to the engine. Called at startup.
func (s *Service) ReindexAll(ctx context.Context) error {
	if !s.engineReady() {
		return nil
	}
	threads, err := s.source.ListThreads(ctx, "")
	if err != nil {
		return fmt.Errorf("reindex load threads: %w", err)
	}
	records := make([]ThreadRecord, 0, len(threads))
	for _, t := range threads {
		records = append(records, RecordFromThread(t))
	}
	result := make(chan error, 1)
	if !s.enqueue(indexOp{batch: records, result: result}) {
		return nil
	}
	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("reindex threads: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info().Int("threads", len(records)).Msg("search index rebuilt")
	return nil
}

// Wait blocks until queued index updates have been attempted.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops the index worker after the queue is drained.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed || s.ops == nil {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()
	<-s.workerDone
}

type indexOp struct {
	record   ThreadRecord
	batch    []ThreadRecord
	deleteID string
	result   chan error
}

func (s *Service) enqueue(op indexOp) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.ops == nil {
		return false
	}
	s.wg.Add(1)
	s.ops <- op
	return true
}

func (s *Service) runIndexer() {
	defer close(s.workerDone)
	for op := range s.ops {
		err := s.apply(op)
		switch {
		case op.result != nil:
			op.result <- err
		case err != nil:
			s.log.Warn().Err(err).Msg("index update failed")
		}
		s.wg.Done()
	}
}

func (s *Service) apply(op indexOp) error {
	switch {
	case op.deleteID != "":
		s.versions[op.deleteID] = math.MaxInt64
		if err := s.engine.DeleteThread(op.deleteID); err != nil {
			return fmt.Errorf("delete thread %s: %w", op.deleteID, err)
		}
		return nil
	case op.batch != nil:
		fresh := make([]ThreadRecord, 0, len(op.batch))
		for _, record := range op.batch {
			if s.advance(record) {
				fresh = append(fresh, record)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		return s.engine.IndexThreads(fresh)
	default:
		if !s.advance(op.record) {
			return nil
		}
		if err := s.engine.IndexThread(op.record); err != nil {
			return fmt.Errorf("index thread %s: %w", op.record.ID, err)
		}
		return nil
	}
}

// advance records record's version and reports whether it is newer than the
// last one sent for its thread. Only the index worker calls it.
func (s *Service) advance(record ThreadRecord) bool {
	if last, ok := s.versions[record.ID]; ok && record.Version <= last {
		return false
	}
	s.versions[record.ID] = record.Version
	return true
}
