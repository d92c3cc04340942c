package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
)

const sessionKeyPrefix = "session:"

// SessionRepository implements repository.SessionRepository using Redis keys
// that hold the creation time and expire after ttl of inactivity.
type SessionRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionRepository creates a new Redis-backed session repository.
func NewSessionRepository(client redis.UniversalClient, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl, now: time.Now}
}

// Create stores a new session identifier.
func (r *SessionRepository) Create(ctx context.Context, sessionID string) (err error) {
	key := sessionKeyPrefix + sessionID
	ctx, end := database.Trace(ctx, database.SystemRedis, "CreateSession", "SET "+key)
	defer func() { end(err) }()

	created := r.now().UTC().Format(time.RFC3339)
	if err := r.client.Set(ctx, key, created, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Refresh extends the session's TTL. It reports false for unknown or expired sessions.
func (r *SessionRepository) Refresh(ctx context.Context, sessionID string) (_ bool, err error) {
	key := sessionKeyPrefix + sessionID
	ctx, end := database.Trace(ctx, database.SystemRedis, "RefreshSession", "EXPIRE "+key)
	defer func() { end(err) }()

	ok, err := r.client.Expire(ctx, key, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire session: %w", err)
	}
	return ok, nil
}
