package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

var machine = inquiry.Machine{}

func replyTransition(role inquiry.Role) Transition {
	return func(current inquiry.Status) (inquiry.Status, error) {
		return machine.Apply(current, inquiry.ReplyEvent(role))
	}
}

func eventTransition(ev inquiry.Event) Transition {
	return func(current inquiry.Status) (inquiry.Status, error) {
		return machine.Apply(current, ev)
	}
}

func seedThread(t *testing.T, s ThreadStore, id, owner string) inquiry.Thread {
	t.Helper()
	thread, first, err := s.CreateThread(context.Background(), inquiry.Thread{
		ID:         id,
		OwnerID:    owner,
		OwnerName:  "Owner " + owner,
		OwnerEmail: owner + "@example.com",
		Subject:    "Billing",
		Status:     inquiry.StatusUnread,
	}, inquiry.Message{
		ID:         id + "-m1",
		Text:       "I was charged twice",
		SenderID:   owner,
		SenderName: "Owner " + owner,
		SenderRole: inquiry.RoleUser,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Seq)
	require.Equal(t, thread.ID, first.ThreadID)
	return thread
}

// runThreadStoreContract exercises behaviour every ThreadStore must share.
func runThreadStoreContract(t *testing.T, newStore func(t *testing.T) ThreadStore) {
	t.Run("create writes thread and first message", func(t *testing.T) {
		s := newStore(t)
		thread := seedThread(t, s, "thr_create", "u1")

		assert.Equal(t, inquiry.StatusUnread, thread.Status)
		assert.Equal(t, "I was charged twice", thread.LastMessage)
		assert.Equal(t, 1, thread.MessageCount)
		assert.Equal(t, int64(1), thread.Version)

		messages, err := s.ListMessages(context.Background(), thread.ID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, inquiry.RoleUser, messages[0].SenderRole)
	})

	t.Run("get unknown thread is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetThread(context.Background(), "thr_missing")
		assert.ErrorIs(t, err, inquiry.ErrNotFound)
	})

	t.Run("append updates status preview and version atomically", func(t *testing.T) {
		s := newStore(t)
		thread := seedThread(t, s, "thr_append", "u1")

		updated, msg, err := s.AppendMessage(context.Background(), inquiry.Message{
			ID:         "thr_append-m2",
			ThreadID:   thread.ID,
			Text:       "We refunded the duplicate charge",
			SenderID:   "a1",
			SenderName: "Support",
			SenderRole: inquiry.RoleAdmin,
		}, replyTransition(inquiry.RoleAdmin))
		require.NoError(t, err)

		assert.Equal(t, int64(2), msg.Seq)
		assert.False(t, msg.CreatedAt.Before(thread.CreatedAt))
		assert.Equal(t, inquiry.StatusAdminReplied, updated.Status)
		assert.Equal(t, "We refunded the duplicate charge", updated.LastMessage)
		assert.Equal(t, 2, updated.MessageCount)
		assert.Equal(t, int64(2), updated.Version)

		stored, err := s.GetThread(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.Status, stored.Status)
	})

	t.Run("rejected transition writes nothing", func(t *testing.T) {
		s := newStore(t)
		thread := seedThread(t, s, "thr_resolved", "u1")
		_, _, _, err := s.UpdateStatus(context.Background(), thread.ID, eventTransition(inquiry.EventResolved))
		require.NoError(t, err)

		_, _, err = s.AppendMessage(context.Background(), inquiry.Message{
			ID:         "thr_resolved-m2",
			ThreadID:   thread.ID,
			Text:       "one more thing",
			SenderID:   "u1",
			SenderName: "Owner u1",
			SenderRole: inquiry.RoleUser,
		}, replyTransition(inquiry.RoleUser))
		assert.ErrorIs(t, err, inquiry.ErrThreadResolved)

		messages, err := s.ListMessages(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.Len(t, messages, 1)
	})

	t.Run("append to unknown thread is not found", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.AppendMessage(context.Background(), inquiry.Message{
			ID:         "m_orphan",
			ThreadID:   "thr_missing",
			Text:       "hello",
			SenderID:   "u1",
			SenderName: "Owner u1",
			SenderRole: inquiry.RoleUser,
		}, replyTransition(inquiry.RoleUser))
		assert.ErrorIs(t, err, inquiry.ErrNotFound)
	})

	t.Run("status update reports unchanged", func(t *testing.T) {
		s := newStore(t)
		thread := seedThread(t, s, "thr_status", "u1")

		viewed, previous, changed, err := s.UpdateStatus(context.Background(), thread.ID, eventTransition(inquiry.EventAdminViewed))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, inquiry.StatusUnread, previous)
		assert.Equal(t, inquiry.StatusRead, viewed.Status)

		again, _, changed, err := s.UpdateStatus(context.Background(), thread.ID, eventTransition(inquiry.EventAdminViewed))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, viewed.Version, again.Version)
	})

	t.Run("delete removes messages", func(t *testing.T) {
		s := newStore(t)
		thread := seedThread(t, s, "thr_delete", "u1")

		deleted, err := s.DeleteThread(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.Equal(t, thread.ID, deleted.ID)

		_, err = s.GetThread(context.Background(), thread.ID)
		assert.ErrorIs(t, err, inquiry.ErrNotFound)
		messages, err := s.ListMessages(context.Background(), thread.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)

		_, err = s.DeleteThread(context.Background(), thread.ID)
		assert.ErrorIs(t, err, inquiry.ErrNotFound)
	})

	t.Run("list threads scopes by owner", func(t *testing.T) {
		s := newStore(t)
		seedThread(t, s, "thr_list_a", "u1")
		seedThread(t, s, "thr_list_b", "u2")
		seedThread(t, s, "thr_list_c", "u1")

		mine, err := s.ListThreads(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		for _, thread := range mine {
			assert.Equal(t, "u1", thread.OwnerID)
		}
		assert.False(t, mine[0].CreatedAt.Before(mine[1].CreatedAt))

		all, err := s.ListThreads(context.Background(), "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("concurrent appends both persist", func(t *testing.T) {
		s := newStore(t)
		thread := seedThread(t, s, "thr_race", "u1")

		senders := []struct {
			id   string
			role inquiry.Role
		}{
			{id: "u1", role: inquiry.RoleUser},
			{id: "a1", role: inquiry.RoleAdmin},
		}
		var wg sync.WaitGroup
		errs := make(chan error, len(senders))
		for i, sender := range senders {
			wg.Add(1)
			go func(i int, id string, role inquiry.Role) {
				defer wg.Done()
				_, _, err := s.AppendMessage(context.Background(), inquiry.Message{
					ID:         fmt.Sprintf("thr_race-m%d", i+2),
					ThreadID:   thread.ID,
					Text:       "reply from " + id,
					SenderID:   id,
					SenderName: id,
					SenderRole: role,
				}, replyTransition(role))
				errs <- err
			}(i, sender.id, sender.role)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		messages, err := s.ListMessages(context.Background(), thread.ID)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		for i, msg := range messages {
			assert.Equal(t, int64(i+1), msg.Seq)
		}

		final, err := s.GetThread(context.Background(), thread.ID)
		require.NoError(t, err)
		last := messages[len(messages)-1]
		want, err := machine.Apply(inquiry.StatusUnread, inquiry.ReplyEvent(last.SenderRole))
		require.NoError(t, err)
		assert.Equal(t, want, final.Status)
		assert.Equal(t, 3, final.MessageCount)
		assert.Equal(t, inquiry.Preview(last.Text), final.LastMessage)
	})

	t.Run("cancelled context fails the write", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := s.CreateThread(ctx, inquiry.Thread{ID: "thr_cancel", OwnerID: "u1", Subject: "x", Status: inquiry.StatusUnread},
			inquiry.Message{ID: "thr_cancel-m1", Text: "hello", SenderID: "u1", SenderName: "u1", SenderRole: inquiry.RoleUser})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
