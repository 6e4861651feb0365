package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
)

// redisStore is the slice of the redis client the lock manager needs.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
	LockKey(scope string) string
}

// releaseScript deletes the lock only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisManager coordinates locks across instances via SET NX with a TTL.
type RedisManager struct {
	store          redisStore
	acquireTimeout time.Duration
	ttl            time.Duration
	retryInterval  time.Duration
}

// NewRedisManager builds a redis-backed lock manager. The TTL bounds how long
// a crashed holder can wedge the key.
func NewRedisManager(store redisStore, acquireTimeout, ttl time.Duration) *RedisManager {
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisManager{
		store:          store,
		acquireTimeout: acquireTimeout,
		ttl:            ttl,
		retryInterval:  50 * time.Millisecond,
	}
}

func (m *RedisManager) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lock key required")
	}

	namespaced := m.store.LockKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(m.acquireTimeout)

	for {
		ok, err := m.store.SetNX(ctx, namespaced, token, m.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire redis lock")
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					_, _ = m.store.Eval(context.Background(), releaseScript, []string{namespaced}, token)
				})
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, pkgerrors.New(pkgerrors.CodeLockTimeout, "timed out waiting for lock").
				WithDetails(map[string]any{"key": key})
		}

		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.CodeLockTimeout, ctx.Err(), "lock wait cancelled").
				WithDetails(map[string]any{"key": key})
		case <-time.After(m.retryInterval):
		}
	}
}
