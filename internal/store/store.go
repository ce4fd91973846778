package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// Transition decides the next status from the one currently stored. It runs
// inside the write that applies it, so the decision and the write cannot be
// interleaved with another writer.
type Transition func(current inquiry.Status) (inquiry.Status, error)

// ThreadStore persists threads and their messages. Messages are kept in their
// own collection keyed by thread; deleting a thread removes them with it.
type ThreadStore interface {
	// CreateThread writes the thread and its first message in one unit.
	CreateThread(ctx context.Context, thread inquiry.Thread, first inquiry.Message) (inquiry.Thread, inquiry.Message, error)
	GetThread(ctx context.Context, threadID string) (inquiry.Thread, error)
	// ListThreads returns every thread when ownerID is empty.
	ListThreads(ctx context.Context, ownerID string) ([]inquiry.Thread, error)
	// ListMessages returns an empty list for unknown threads.
	ListMessages(ctx context.Context, threadID string) ([]inquiry.Message, error)
	// AppendMessage writes the message, the status produced by next and the
	// lastMessage preview atomically.
	AppendMessage(ctx context.Context, message inquiry.Message, next Transition) (inquiry.Thread, inquiry.Message, error)
	// UpdateStatus applies next; changed is false when the status is unchanged
	// and nothing was written.
	UpdateStatus(ctx context.Context, threadID string, next Transition) (thread inquiry.Thread, previous inquiry.Status, changed bool, err error)
	DeleteThread(ctx context.Context, threadID string) (inquiry.Thread, error)
	Ping(ctx context.Context) error
}

// wrapStoreError classifies driver failures into the inquiry taxonomy while
// keeping the original error in the chain.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, passthrough := range []error{
		inquiry.ErrNotFound,
		inquiry.ErrPermissionDenied,
		inquiry.ErrTransport,
		inquiry.ErrThreadResolved,
		inquiry.ErrReopenDisabled,
		inquiry.ErrInvalidTransition,
	} {
		if errors.Is(err, passthrough) {
			return err
		}
	}
	if inquiry.IsValidation(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%s: %w: %w", op, inquiry.ErrPermissionDenied, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, inquiry.ErrTransport, err)
}
