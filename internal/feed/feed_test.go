package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

func receive(t *testing.T, ch <-chan inquiry.Change) inquiry.Change {
	t.Helper()
	select {
	case change, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before a change arrived")
		}
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return inquiry.Change{}
}

func waitClosed(t *testing.T, ch <-chan inquiry.Change) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed")
		}
	}
}

func TestLocalBusFansOut(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	ctx := context.Background()

	first, cancelFirst, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelFirst()
	second, cancelSecond, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelSecond()

	change := inquiry.Change{Kind: inquiry.ChangeAppended, ThreadID: "thr_1", OwnerID: "u1", Version: 2}
	if err := bus.Publish(ctx, change); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got := receive(t, first); got.ThreadID != "thr_1" || got.Version != 2 {
		t.Fatalf("unexpected change on first subscriber: %+v", got)
	}
	if got := receive(t, second); got.Kind != inquiry.ChangeAppended {
		t.Fatalf("unexpected change on second subscriber: %+v", got)
	}
}

func TestLocalBusCancelClosesChannel(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancelCtx := context.WithCancel(context.Background())

	ch, cancel, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel()
	waitClosed(t, ch)

	byCtx, _, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancelCtx()
	waitClosed(t, byCtx)

	if err := bus.Publish(context.Background(), inquiry.Change{ThreadID: "thr_2"}); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}

func TestLocalBusCloseEndsSubscribers(t *testing.T) {
	bus := NewLocalBus()
	ch, cancel, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitClosed(t, ch)
}

func TestRedisBusRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	bus, err := NewRedisBus("redis://"+s.Addr(), "inquiry:changes", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus failed: %v", err)
	}
	defer bus.Close()

	ctx := context.Background()
	if err := bus.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	ch, cancel, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := bus.Publish(ctx, inquiry.Change{Kind: inquiry.ChangeStatus, ThreadID: "thr_9", OwnerID: "u9", Version: 4, At: at}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := receive(t, ch)
	if got.Kind != inquiry.ChangeStatus || got.ThreadID != "thr_9" || got.OwnerID != "u9" || got.Version != 4 {
		t.Fatalf("unexpected change: %+v", got)
	}
	if !got.At.Equal(at) {
		t.Fatalf("expected At %v, got %v", at, got.At)
	}

	cancel()
	waitClosed(t, ch)
}

func TestRedisBusIgnoresMalformedPayload(t *testing.T) {
	s := miniredis.RunT(t)
	bus, err := NewRedisBus("redis://"+s.Addr(), "inquiry:changes", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus failed: %v", err)
	}
	defer bus.Close()

	ctx := context.Background()
	ch, cancel, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	s.Publish("inquiry:changes", "{not json")
	if err := bus.Publish(ctx, inquiry.Change{Kind: inquiry.ChangeDeleted, ThreadID: "thr_ok"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := receive(t, ch); got.ThreadID != "thr_ok" {
		t.Fatalf("expected the valid change, got %+v", got)
	}
}

func TestNewRedisBusRejectsBadURL(t *testing.T) {
	if _, err := NewRedisBus("://bad", "inquiry:changes", zerolog.Nop()); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestLocalBusOverflowQueuesResync(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	ctx := context.Background()

	ch, cancel, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for i := 0; i < subscriberBuffer; i++ {
		if err := bus.Publish(ctx, inquiry.Change{Kind: inquiry.ChangeAppended, ThreadID: "thr_other"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := bus.Publish(ctx, inquiry.Change{Kind: inquiry.ChangeAppended, ThreadID: "thr_watched"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var last inquiry.Change
	for i := 0; i < subscriberBuffer; i++ {
		last = receive(t, ch)
		if last.ThreadID == "thr_watched" {
			t.Fatal("overflowing change should have been replaced")
		}
	}
	if last.Kind != inquiry.ChangeResync {
		t.Fatalf("last queued change = %q, want %q", last.Kind, inquiry.ChangeResync)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra change %+v", extra)
	default:
	}
}
