package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("redis: lock held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring mutual-exclusion locks with SET NX.
type Locker struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewLocker creates a Locker whose keys are namespaced under prefix.
func NewLocker(client redis.UniversalClient, prefix string, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{client: client, prefix: prefix, logger: logger}
}

// Acquire takes the lock for key for at most ttl. The returned release func is safe to call once
// the lock expired; it never removes a lock taken by someone else.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	release := func() {
		// Detached from the caller so a cancelled request still frees the lock.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{full}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("lock release failed", zap.String("key", full), zap.Error(err))
		}
	}
	return release, nil
}
