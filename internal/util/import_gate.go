package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ImportGate is the fast-path per-user lock for the at-most-one-run
// invariant. The database partial unique index on processing runs is
// the authority; this gate only short-circuits concurrent requests
// before they touch the database.
type ImportGate struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewImportGate(rdb *redis.Client, ttl time.Duration) *ImportGate {
	return &ImportGate{rdb: rdb, ttl: ttl}
}

func (g *ImportGate) key(userID int64) string {
	return fmt.Sprintf("import:gate:%d", userID)
}

// TryAcquire attempts to take the per-user import lock.
// Returns true if this caller holds the lock. When Redis is
// unavailable the gate does not block; the unique index catches
// concurrent runs instead.
func (g *ImportGate) TryAcquire(ctx context.Context, userID int64) bool {
	ok, err := g.rdb.SetNX(ctx, g.key(userID), 1, g.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release drops the per-user lock after the run reaches a terminal state.
func (g *ImportGate) Release(ctx context.Context, userID int64) {
	_ = g.rdb.Del(ctx, g.key(userID)).Err()
}
