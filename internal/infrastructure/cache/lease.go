package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"peerlend-backend/pkg/id"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a best-effort mutual exclusion lock built on SET NX PX.
type Lease struct {
	rdb    *redis.Client
	prefix string
}

func NewLease(rdb *redis.Client, prefix string) *Lease {
	return &Lease{rdb: rdb, prefix: prefix}
}

// Acquire takes key for ttl. ok is false when another holder owns it.
// The returned release is safe to call after the lease expired.
func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error) {
	if l == nil || l.rdb == nil {
		return func(context.Context) {}, true, nil
	}
	full := l.prefix + key
	token := id.NewID32()
	ok, err = l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) {
		// on failure the key still expires after ttl
		_ = releaseScript.Run(ctx, l.rdb, []string{full}, token).Err()
	}, true, nil
}
