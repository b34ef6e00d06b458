package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/modexam-backend/internal/config"
)

// refreshScript extends the lease only while the caller still owns it.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lease only while the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EngineLease guarantees at most one live engine per session across all
// server instances.
type EngineLease struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEngineLease creates a lease manager.
func NewEngineLease(rdb *redis.Client, ttl time.Duration) *EngineLease {
	return &EngineLease{rdb: rdb, ttl: ttl}
}

// Acquire takes the lease for sessionUID on behalf of owner. It returns false
// when someone else holds it.
func (l *EngineLease) Acquire(ctx context.Context, sessionUID, owner string) (bool, error) {
	return l.rdb.SetNX(ctx, config.CacheKey.EngineLeaseKey(sessionUID), owner, l.ttl).Result()
}

// Refresh extends the lease. It returns false when the lease was lost.
func (l *EngineLease) Refresh(ctx context.Context, sessionUID, owner string) (bool, error) {
	n, err := refreshScript.Run(ctx, l.rdb,
		[]string{config.CacheKey.EngineLeaseKey(sessionUID)},
		owner, l.ttl.Milliseconds(),
	).Int()
	return n == 1, err
}

// Release gives the lease back.
func (l *EngineLease) Release(ctx context.Context, sessionUID, owner string) error {
	return releaseScript.Run(ctx, l.rdb,
		[]string{config.CacheKey.EngineLeaseKey(sessionUID)},
		owner,
	).Err()
}
