package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("lock already held")

// unlockScript releases the lock only if we still own it, so an
// expired lock grabbed by another collector is never clobbered.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock acquires a distributed lock via SETNX. On success it returns
// an unlock func; if the lock is held elsewhere it returns ErrLocked.
// The TTL bounds how long a crashed holder blocks other runs.
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (func(), error) {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	unlock := func() {
		// Best effort; the TTL cleans up if this fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}
	return unlock, nil
}
