package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker holds leases as Redis keys set with NX and a TTL.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	script *redis.Script
}

// NewRedisLocker creates a locker whose keys are namespaced by prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}
