package submit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard admits one in-flight submission per form instance token. A false ok
// means another holder has the token; release must be called exactly once
// when ok is true.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

func noop() {}

// MemoryGuard holds tokens in process memory.
type MemoryGuard struct {
	held sync.Map
}

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	if key == "" {
		return noop, true, nil
	}
	if _, loaded := g.held.LoadOrStore(key, struct{}{}); loaded {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(func() { g.held.Delete(key) }) }, true, nil
}

// DefaultGuardTTL bounds how long a crashed holder can block a token.
const DefaultGuardTTL = 2 * time.Minute

// releaseScript deletes the lock only if it still carries our value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares tokens across server replicas with SET NX PX.
type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisGuard creates a guard on client. Locks expire after ttl.
func NewRedisGuard(client redis.Cmdable, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisGuard{client: client, ttl: ttl, prefix: "submit:inflight:"}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	if key == "" {
		return noop, true, nil
	}

	k := g.prefix + key
	owner := uuid.NewString()

	ok, err := g.client.SetNX(ctx, k, owner, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire guard: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The request context may already be done.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.client, []string{k}, owner).Err()
		})
	}
	return release, true, nil
}
