// Package search provides full-text search over inquiry threads. Meilisearch
// serves queries while it is healthy; otherwise the thread store is scanned.
package search

import (
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// Query describes a search request.
type Query struct {
	Text string
	// OwnerID restricts results to one owner's threads; empty searches all.
	OwnerID string
	Status  inquiry.Status
	Limit   int
	Offset  int
}

const (
	EngineMeili    = "meilisearch"
	EngineFallback = "store"
)

// Response is the envelope returned by the search endpoint.
type Response struct {
	Threads []inquiry.Thread `json:"threads"`
	Total   int              `json:"total"`
	Query   string           `json:"query"`
	Engine  string           `json:"engine"`
}

// Engine is a search backend that returns matching thread IDs in rank order.
type Engine interface {
	Search(q Query) ([]string, int, error)
	Healthy() bool
	IndexThread(t ThreadRecord) error
	IndexThreads(threads []ThreadRecord) error
	DeleteThread(id string) error
}

// ThreadRecord is the data we index for a thread.
type ThreadRecord struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	OwnerName   string `json:"ownerName"`
	OwnerEmail  string `json:"ownerEmail"`
	Subject     string `json:"subject"`
	Status      string `json:"status"`
	LastMessage string `json:"lastMessage"`
	CreatedAt   int64  `json:"createdAt"`
	Version     int64  `json:"version"`
}

func RecordFromThread(t inquiry.Thread) ThreadRecord {
	return ThreadRecord{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		OwnerName:   t.OwnerName,
		OwnerEmail:  t.OwnerEmail,
		Subject:     t.Subject,
		Status:      string(t.Status),
		LastMessage: t.LastMessage,
		CreatedAt:   t.CreatedAt.Unix(),
		Version:     t.Version,
	}
}
