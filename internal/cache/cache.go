// Package cache publishes the per-session action history to Redis so
// spectator services and replay tooling can subscribe to it. A nil *Cache
// is valid and drops everything, so the server runs without Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lizeren/Cabo/internal/game"
)

const publishTimeout = 2 * time.Second

// Cache wraps the Redis client.
type Cache struct {
	rdb *redis.Client
	log *logrus.Entry
}

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{rdb: rdb, log: logrus.WithField("component", "cache")}, nil
}

// Close releases the client. Safe on a nil receiver.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	_ = c.rdb.Close()
}

// channelFor returns the pub/sub channel of one session's history.
func channelFor(sessionCode string) string {
	return "cabo:actions:" + sessionCode
}

// PublishAction emits one action record, fire-and-forget. Intended to be
// wired as a Session's ActionLogFn; it must never block game flow, so the
// publish runs on its own goroutine with a short timeout.
func (c *Cache) PublishAction(rec game.ActionRecord) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		c.log.WithError(err).Error("failed to marshal action record")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := c.rdb.Publish(ctx, channelFor(rec.SessionCode), payload).Err(); err != nil {
			c.log.WithError(err).WithField("session", rec.SessionCode).Debug("action publish failed")
		}
	}()
}
