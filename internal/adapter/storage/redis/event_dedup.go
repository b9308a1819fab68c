package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventDedup implements ports.EventDedup over Redis. It is the fast
// path for webhook replay suppression; the withdrawal row's terminal
// state remains the durable guard if Redis loses the key. Event ids
// are recorded by the caller only after the event's effects commit,
// so a failed delivery never leaves a key that would block its retry.
type EventDedup struct {
	client *goredis.Client
	prefix string
}

// NewEventDedup creates a new Redis-backed event dedup store.
func NewEventDedup(client *goredis.Client) *EventDedup {
	return &EventDedup{
		client: client,
		prefix: "payout_event:",
	}
}

func (s *EventDedup) key(provider, eventID string) string {
	return s.prefix + provider + ":" + eventID
}

// Seen reports whether the event id was already recorded, scoped per
// provider.
func (s *EventDedup) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis event dedup: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records the event id for ttl.
func (s *EventDedup) MarkSeen(ctx context.Context, provider, eventID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(provider, eventID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis event dedup: %w", err)
	}
	return nil
}
