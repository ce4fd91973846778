package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// RedisBus publishes changes on a Redis Pub/Sub channel so every API instance
// refreshes its live views.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

// NewRedisBus connects to redisURL and verifies the connection.
func NewRedisBus(redisURL, channel string, log zerolog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBusWithClient(client, channel, log), nil
}

// NewRedisBusWithClient creates a bus from an existing Redis client
func NewRedisBusWithClient(client *redis.Client, channel string, log zerolog.Logger) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "change-feed").Str("channel", channel).Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, change inquiry.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan inquiry.Change, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation so no publish after Subscribe
	// returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan inquiry.Change, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change inquiry.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.log.Warn().Err(err).Msg("dropping malformed change")
					continue
				}
				if offer(out, change) {
					b.log.Warn().Str("thread_id", change.ThreadID).Msg("subscriber lagging; queued resync")
				}
			}
		}
	}()
	return out, cancel, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
