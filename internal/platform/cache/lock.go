package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("platform/cache: lock held")

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out best-effort mutual exclusion backed by SET NX PX.
type Locker struct {
	client redis.UniversalClient
}

// NewLocker constructs a Locker.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Lock is an acquired lock.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Acquire takes key for ttl or returns ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("platform/cache: locker not configured")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release frees the lock if it is still owned.
func (k *Lock) Release(ctx context.Context) error {
	if k == nil {
		return nil
	}
	return releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Err()
}
