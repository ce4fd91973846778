// Package inquiry holds the thread/message model shared by the store, the
// live synchronizer and the HTTP service: the status state machine, the error
// taxonomy and the list projections used by both the user and admin views.
package inquiry

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// NormalizeRole maps anything that is not explicitly admin to user.
func NormalizeRole(role string) Role {
	if Role(strings.ToLower(strings.TrimSpace(role))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Identity is the already-authenticated actor behind a call. It is passed
// explicitly into every store and service operation.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Owns reports whether the identity is the owner of the thread.
func (i Identity) Owns(t Thread) bool {
	return i.UserID != "" && i.UserID == t.OwnerID
}

type Thread struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	OwnerName    string    `json:"ownerName"`
	OwnerEmail   string    `json:"ownerEmail"`
	Subject      string    `json:"subject"`
	Status       Status    `json:"status"`
	LastMessage  string    `json:"lastMessage"`
	MessageCount int       `json:"messageCount"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole Role      `json:"senderRole"`
	Seq        int64     `json:"seq"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PreviewLength bounds the denormalized lastMessage field.
const PreviewLength = 140

// Preview trims text to the list-view preview length on a rune boundary.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength-1]) + "…"
}

// ChangeKind describes what happened to a thread in a change notification.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeAppended ChangeKind = "appended"
	ChangeStatus   ChangeKind = "status"
	ChangeDeleted  ChangeKind = "deleted"
	// ChangeResync is queued in place of changes a slow subscriber missed; it
	// carries no thread and applies to every view.
	ChangeResync ChangeKind = "resync"
)

// Change is the notification emitted after every successful store write.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	ThreadID string     `json:"threadId"`
	OwnerID  string     `json:"ownerId"`
	Version  int64      `json:"version"`
	At       time.Time  `json:"at"`
}
