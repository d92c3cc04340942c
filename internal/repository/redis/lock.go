package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
)

const lockKeyPrefix = "lock:"

// releaseScript deletes the lock only when the caller's token still holds it,
// so an expired holder cannot free a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockRepository implements repository.LockRepository with SET NX PX.
type LockRepository struct {
	client redis.UniversalClient
}

// NewLockRepository creates a new Redis-backed lock repository.
func NewLockRepository(client redis.UniversalClient) *LockRepository {
	return &LockRepository{client: client}
}

// Acquire takes the lock for ttl. ok is false when another holder has it.
func (r *LockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (_ string, _ bool, err error) {
	full := lockKeyPrefix + key
	ctx, end := database.Trace(ctx, database.SystemRedis, "AcquireLock", "SET "+full+" NX")
	defer func() { end(err) }()

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis acquire lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if token still owns it.
func (r *LockRepository) Release(ctx context.Context, key, token string) (err error) {
	full := lockKeyPrefix + key
	ctx, end := database.Trace(ctx, database.SystemRedis, "ReleaseLock", "EVAL release "+full)
	defer func() { end(err) }()

	if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
		return fmt.Errorf("redis release lock: %w", err)
	}
	return nil
}
