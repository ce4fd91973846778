package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

const threadColumns = `id, owner_id, owner_name, owner_email, subject, status, last_message, message_count, version, created_at, updated_at`

const messageColumns = `id, thread_id, seq, text, sender_id, sender_name, sender_role, created_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapStoreError("ping", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (inquiry.Thread, error) {
	var item inquiry.Thread
	var status string
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.OwnerName,
		&item.OwnerEmail,
		&item.Subject,
		&status,
		&item.LastMessage,
		&item.MessageCount,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return inquiry.Thread{}, inquiry.ErrNotFound
	}
	if err != nil {
		return inquiry.Thread{}, err
	}
	item.Status = inquiry.Status(status)
	return item, nil
}

func scanMessage(row rowScanner) (inquiry.Message, error) {
	var item inquiry.Message
	var role string
	if err := row.Scan(
		&item.ID,
		&item.ThreadID,
		&item.Seq,
		&item.Text,
		&item.SenderID,
		&item.SenderName,
		&role,
		&item.CreatedAt,
	); err != nil {
		return inquiry.Message{}, err
	}
	item.SenderRole = inquiry.Role(role)
	return item, nil
}

func (s *PostgresStore) CreateThread(ctx context.Context, thread inquiry.Thread, first inquiry.Message) (inquiry.Thread, inquiry.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("begin create thread", err)
	}
	defer func() { _ = tx.Rollback() }()

	created, err := scanThread(tx.QueryRowContext(ctx, `
		INSERT INTO inquiry_threads (id, owner_id, owner_name, owner_email, subject, status, last_message, message_count, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, 1, clock_timestamp(), clock_timestamp())
		RETURNING `+threadColumns,
		thread.ID, thread.OwnerID, thread.OwnerName, thread.OwnerEmail, thread.Subject, string(thread.Status), inquiry.Preview(first.Text),
	))
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("insert thread", err)
	}

	message, err := scanMessage(tx.QueryRowContext(ctx, `
		INSERT INTO inquiry_messages (`+messageColumns+`)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7)
		RETURNING `+messageColumns,
		first.ID, created.ID, first.Text, first.SenderID, first.SenderName, string(first.SenderRole), created.CreatedAt,
	))
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("insert first message", err)
	}

	if err := tx.Commit(); err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("commit create thread", err)
	}
	return created, message, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (inquiry.Thread, error) {
	thread, err := scanThread(s.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM inquiry_threads WHERE id=$1`, threadID))
	if err != nil {
		return inquiry.Thread{}, wrapStoreError("get thread", err)
	}
	return thread, nil
}

func (s *PostgresStore) ListThreads(ctx context.Context, ownerID string) ([]inquiry.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM inquiry_threads
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY created_at DESC, id ASC
	`, ownerID)
	if err != nil {
		return nil, wrapStoreError("list threads", err)
	}
	defer rows.Close()

	items := make([]inquiry.Thread, 0)
	for rows.Next() {
		item, err := scanThread(rows)
		if err != nil {
			return nil, wrapStoreError("scan thread", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate threads", err)
	}
	return items, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, threadID string) ([]inquiry.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM inquiry_messages
		WHERE thread_id=$1
		ORDER BY created_at ASC, seq ASC
	`, threadID)
	if err != nil {
		return nil, wrapStoreError("list messages", err)
	}
	defer rows.Close()

	items := make([]inquiry.Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, wrapStoreError("scan message", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate messages", err)
	}
	return items, nil
}

// lockThread reads the thread row FOR UPDATE together with the newest
// message position, serializing writers on the same thread.
func lockThread(ctx context.Context, tx *sql.Tx, threadID string) (inquiry.Thread, int64, time.Time, error) {
	thread, err := scanThread(tx.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM inquiry_threads WHERE id=$1 FOR UPDATE`, threadID))
	if err != nil {
		return inquiry.Thread{}, 0, time.Time{}, err
	}
	var lastSeq int64
	var lastAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(created_at), $2::timestamptz)
		FROM inquiry_messages
		WHERE thread_id=$1
	`, threadID, thread.CreatedAt).Scan(&lastSeq, &lastAt)
	if err != nil {
		return inquiry.Thread{}, 0, time.Time{}, err
	}
	return thread, lastSeq, lastAt, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, message inquiry.Message, next Transition) (inquiry.Thread, inquiry.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()

	thread, lastSeq, lastAt, err := lockThread(ctx, tx, message.ThreadID)
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("lock thread", err)
	}
	status, err := next(thread.Status)
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, err
	}

	written, err := scanMessage(tx.QueryRowContext(ctx, `
		INSERT INTO inquiry_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, GREATEST(clock_timestamp(), $8::timestamptz))
		RETURNING `+messageColumns,
		message.ID, message.ThreadID, lastSeq+1, message.Text, message.SenderID, message.SenderName, string(message.SenderRole), lastAt,
	))
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("insert message", err)
	}

	updated, err := scanThread(tx.QueryRowContext(ctx, `
		UPDATE inquiry_threads
		SET status=$2, last_message=$3, message_count=message_count+1, version=version+1, updated_at=$4
		WHERE id=$1
		RETURNING `+threadColumns,
		thread.ID, string(status), inquiry.Preview(written.Text), written.CreatedAt,
	))
	if err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("update thread after append", err)
	}

	if err := tx.Commit(); err != nil {
		return inquiry.Thread{}, inquiry.Message{}, wrapStoreError("commit append", err)
	}
	return updated, written, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, threadID string, next Transition) (inquiry.Thread, inquiry.Status, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inquiry.Thread{}, "", false, wrapStoreError("begin status update", err)
	}
	defer func() { _ = tx.Rollback() }()

	thread, err := scanThread(tx.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM inquiry_threads WHERE id=$1 FOR UPDATE`, threadID))
	if err != nil {
		return inquiry.Thread{}, "", false, wrapStoreError("lock thread", err)
	}
	previous := thread.Status
	status, err := next(previous)
	if err != nil {
		return thread, previous, false, err
	}
	if status == previous {
		return thread, previous, false, nil
	}

	updated, err := scanThread(tx.QueryRowContext(ctx, `
		UPDATE inquiry_threads
		SET status=$2, version=version+1, updated_at=clock_timestamp()
		WHERE id=$1
		RETURNING `+threadColumns,
		threadID, string(status),
	))
	if err != nil {
		return inquiry.Thread{}, previous, false, wrapStoreError("update status", err)
	}
	if err := tx.Commit(); err != nil {
		return inquiry.Thread{}, previous, false, wrapStoreError("commit status update", err)
	}
	return updated, previous, true, nil
}

// DeleteThread removes the thread; inquiry_messages rows go with it through
// ON DELETE CASCADE in the same statement.
func (s *PostgresStore) DeleteThread(ctx context.Context, threadID string) (inquiry.Thread, error) {
	deleted, err := scanThread(s.db.QueryRowContext(ctx, `DELETE FROM inquiry_threads WHERE id=$1 RETURNING `+threadColumns, threadID))
	if err != nil {
		return inquiry.Thread{}, wrapStoreError("delete thread", err)
	}
	return deleted, nil
}
