package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionGuard enforces one in-progress session per user across instances
// with a SET NX key per user. The TTL is a safety net against leaked
// guards; the abandonment sweep releases them much earlier in practice.
type SessionGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionGuard(client *redis.Client, ttl time.Duration) *SessionGuard {
	return &SessionGuard{client: client, ttl: ttl}
}

func (g *SessionGuard) Acquire(ctx context.Context, userID, sessionID string) (bool, error) {
	return g.client.SetNX(ctx, g.key(userID), sessionID, g.ttl).Result()
}

func (g *SessionGuard) Release(ctx context.Context, userID string) error {
	return g.client.Del(ctx, g.key(userID)).Err()
}

func (g *SessionGuard) key(userID string) string {
	return "quiz:active:" + userID
}
