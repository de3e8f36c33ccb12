// Package cache is the redis layer: matchmaking, room state persistence,
// the layered expiry timers, and the action history queue. All workers
// share this state, which is what lets any worker serve any room.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Rdb is the shared redis client, initialized once at startup via
// InitRedis. Nil when redis is not configured; callers that can degrade
// check for nil before use.
var Rdb *redis.Client

// InitRedis connects the package-level client and verifies the
// connection with a ping.
func InitRedis(ctx context.Context, addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}
	Rdb = client
	return nil
}

// Close shuts down the shared client.
func Close() error {
	if Rdb == nil {
		return nil
	}
	err := Rdb.Close()
	Rdb = nil
	return err
}
