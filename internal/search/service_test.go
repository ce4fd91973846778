package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/store"
)

type fakeEngine struct {
	mu       sync.Mutex
	healthy  bool
	ids      []string
	err      error
	queries  []Query
	indexed  []ThreadRecord
	deleted  []string
	indexErr error
}

func (f *fakeEngine) Search(q Query) ([]string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.ids, len(f.ids), f.err
}

func (f *fakeEngine) Healthy() bool { return f.healthy }

func (f *fakeEngine) IndexThread(t ThreadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, t)
	return f.indexErr
}

func (f *fakeEngine) IndexThreads(threads []ThreadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, threads...)
	return f.indexErr
}

func (f *fakeEngine) DeleteThread(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore(zerolog.Nop())
	seed := []struct{ id, owner, name, subject, text string }{
		{"thr_1", "u1", "Ada Lovelace", "Billing question", "Why was I charged twice?"},
		{"thr_2", "u2", "Grace Hopper", "Shipping delay", "Where is my order?"},
		{"thr_3", "u1", "Ada Lovelace", "Account access", "Cannot log in"},
	}
	for _, item := range seed {
		_, _, err := s.CreateThread(context.Background(), inquiry.Thread{
			ID:         item.id,
			OwnerID:    item.owner,
			OwnerName:  item.name,
			OwnerEmail: strings.ToLower(strings.Fields(item.name)[0]) + "@example.com",
			Subject:    item.subject,
			Status:     inquiry.StatusUnread,
		}, inquiry.Message{ID: item.id + "-m1", Text: item.text, SenderID: item.owner, SenderName: item.name, SenderRole: inquiry.RoleUser})
		require.NoError(t, err)
	}
	return s
}

func TestSearchFallbackMatchesSubjectAndMessage(t *testing.T) {
	svc := NewService(nil, seededStore(t), zerolog.Nop())

	resp, err := svc.Search(context.Background(), Query{Text: "charged"})
	require.NoError(t, err)
	assert.Equal(t, EngineFallback, resp.Engine)
	require.Len(t, resp.Threads, 1)
	assert.Equal(t, "thr_1", resp.Threads[0].ID)

	resp, err = svc.Search(context.Background(), Query{Text: "SHIPPING"})
	require.NoError(t, err)
	require.Len(t, resp.Threads, 1)
	assert.Equal(t, "thr_2", resp.Threads[0].ID)
}

func TestSearchFallbackRespectsOwnerScope(t *testing.T) {
	svc := NewService(nil, seededStore(t), zerolog.Nop())

	resp, err := svc.Search(context.Background(), Query{Text: "", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	for _, thread := range resp.Threads {
		assert.Equal(t, "u1", thread.OwnerID)
	}

	resp, err = svc.Search(context.Background(), Query{Text: "grace", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Threads)
}

func TestSearchFallbackPages(t *testing.T) {
	svc := NewService(nil, seededStore(t), zerolog.Nop())

	resp, err := svc.Search(context.Background(), Query{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Threads, 1)

	resp, err = svc.Search(context.Background(), Query{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Threads)
}

func TestSearchUsesEngineAndSkipsDeletedHits(t *testing.T) {
	engine := &fakeEngine{healthy: true, ids: []string{"thr_2", "thr_gone", "thr_1"}}
	svc := NewService(engine, seededStore(t), zerolog.Nop())
	defer svc.Close()

	resp, err := svc.Search(context.Background(), Query{Text: "question", OwnerID: "u9"})
	require.NoError(t, err)
	assert.Equal(t, EngineMeili, resp.Engine)
	require.Len(t, resp.Threads, 2)
	assert.Equal(t, "thr_2", resp.Threads[0].ID)
	assert.Equal(t, "thr_1", resp.Threads[1].ID)
	require.Len(t, engine.queries, 1)
	assert.Equal(t, "u9", engine.queries[0].OwnerID)
}

func TestSearchFallsBackWhenEngineFails(t *testing.T) {
	engine := &fakeEngine{healthy: true, err: errors.New("boom")}
	svc := NewService(engine, seededStore(t), zerolog.Nop())
	defer svc.Close()

	resp, err := svc.Search(context.Background(), Query{Text: "login"})
	require.NoError(t, err)
	assert.Equal(t, EngineFallback, resp.Engine)
	assert.Empty(t, resp.Threads)

	resp, err = svc.Search(context.Background(), Query{Text: "log in"})
	require.NoError(t, err)
	require.Len(t, resp.Threads, 1)
	assert.Equal(t, "thr_3", resp.Threads[0].ID)
}

func TestIndexingSkippedWhenUnhealthy(t *testing.T) {
	engine := &fakeEngine{healthy: false}
	svc := NewService(engine, seededStore(t), zerolog.Nop())
	defer svc.Close()

	svc.IndexThread(inquiry.Thread{ID: "thr_1"})
	svc.DeleteThread("thr_1")
	svc.Wait()
	assert.Empty(t, engine.indexed)
	assert.Empty(t, engine.deleted)
}

func TestIndexAndReindex(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, seededStore(t), zerolog.Nop())
	defer svc.Close()

	svc.IndexThread(inquiry.Thread{ID: "thr_9", OwnerID: "u1", Subject: "New", Status: inquiry.StatusUnread})
	svc.DeleteThread("thr_8")
	svc.Wait()
	require.Len(t, engine.indexed, 1)
	assert.Equal(t, "Unread", engine.indexed[0].Status)
	assert.Equal(t, []string{"thr_8"}, engine.deleted)

	require.NoError(t, svc.ReindexAll(context.Background()))
	assert.Len(t, engine.indexed, 4)
}

func TestBuildRequestScopesFilters(t *testing.T) {
	sr := buildRequest(Query{Text: "refund", OwnerID: `u"1`, Status: inquiry.StatusResolved})
	assert.Equal(t, idxThreads, sr.IndexUID)
	assert.Equal(t, int64(20), sr.Limit)
	assert.Equal(t, []string{`ownerId = "u\"1"`, `status = "Resolved"`}, sr.Filter)

	sr = buildRequest(Query{Text: "refund", Limit: 5})
	assert.Nil(t, sr.Filter)
	assert.Equal(t, int64(5), sr.Limit)
}

func TestIndexUpdatesKeepNewestVersion(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, seededStore(t), zerolog.Nop())
	defer svc.Close()

	svc.IndexThread(inquiry.Thread{ID: "thr_7", Status: inquiry.StatusUserReply, Version: 3})
	svc.IndexThread(inquiry.Thread{ID: "thr_7", Status: inquiry.StatusUnread, Version: 2})
	svc.IndexThread(inquiry.Thread{ID: "thr_7", Status: inquiry.StatusRead, Version: 4})
	svc.Wait()

	require.Len(t, engine.indexed, 2)
	assert.Equal(t, "UserReply", engine.indexed[0].Status)
	assert.Equal(t, "Read", engine.indexed[1].Status)

	svc.DeleteThread("thr_7")
	svc.IndexThread(inquiry.Thread{ID: "thr_7", Status: inquiry.StatusResolved, Version: 5})
	svc.Wait()
	assert.Len(t, engine.indexed, 2, "a deleted thread must not be indexed again")
	assert.Equal(t, []string{"thr_7"}, engine.deleted)
}

func TestCloseStopsIndexing(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, seededStore(t), zerolog.Nop())
	svc.IndexThread(inquiry.Thread{ID: "thr_1", Version: 1})
	svc.Close()
	svc.Close()

	svc.IndexThread(inquiry.Thread{ID: "thr_1", Version: 2})
	svc.Wait()
	assert.Len(t, engine.indexed, 1)
}
