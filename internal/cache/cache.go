// Package cache keeps each owner's task list query results in Redis
// (cache-aside). All Redis calls pass through a circuit breaker so an
// unhealthy Redis degrades to cache misses instead of slow requests.
//
// Every owner has a generation counter that Invalidate bumps. A list is
// only stored if the generation it was read under is still current, so a
// reader that lost a race with a writer cannot put the old board back.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = gobreaker.ErrOpenState

// KEYS[1] generation, KEYS[2] list hash.
// ARGV[1] expected generation, ARGV[2] field, ARGV[3] payload, ARGV[4] ttl ms.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[2], ARGV[4])
end
return 1
`)

type Cache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
}

func New(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-task-cache",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Cache{client: client, breaker: breaker, prefix: prefix, ttl: ttl, logger: logger}
}

// Connect dials Redis and verifies it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Every cached list of one owner lives in a single hash so one DEL drops them all.
func (c *Cache) ownerKey(ownerID uuid.UUID) string {
	return c.prefix + "tasks:" + ownerID.String()
}

// The generation key has no expiry: losing it while a reader holds an old
// value would let that reader's write through.
func (c *Cache) generationKey(ownerID uuid.UUID) string {
	return c.prefix + "tasks-gen:" + ownerID.String()
}

// Generation returns the owner's current generation. Read it before
// querying the database and hand it to SetList.
func (c *Cache) Generation(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		gen, err := c.client.Get(ctx, c.generationKey(ownerID)).Int64()
		if errors.Is(err, redis.Nil) {
			return int64(0), nil
		}
		return gen, err
	})
	if err != nil {
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return res.(int64), nil
}

// GetList loads the list cached under query into dest. A miss returns false
// with a nil error.
func (c *Cache) GetList(ctx context.Context, ownerID uuid.UUID, query string, dest interface{}) (bool, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.HGet(ctx, c.ownerKey(ownerID), query).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return false, fmt.Errorf("cache get error: %w", err)
	}
	data, _ := res.([]byte)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return true, nil
}

// SetList stores value under query unless the owner was invalidated since
// gen was read. It reports whether the value was stored.
func (c *Cache) SetList(ctx context.Context, ownerID uuid.UUID, gen int64, query string, value interface{}) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache marshal error: %w", err)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		keys := []string{c.generationKey(ownerID), c.ownerKey(ownerID)}
		return setIfCurrent.Run(ctx, c.client, keys,
			strconv.FormatInt(gen, 10), query, data, c.ttl.Milliseconds()).Int()
	})
	if err != nil {
		return false, fmt.Errorf("cache set error: %w", err)
	}
	if res.(int) == 0 {
		c.logger.Debug("stale task list not cached",
			zap.String("owner_id", ownerID.String()),
			zap.Int64("generation", gen),
		)
		return false, nil
	}
	return true, nil
}

// Invalidate bumps the owner's generation and drops every cached list.
func (c *Cache) Invalidate(ctx context.Context, ownerID uuid.UUID) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		pipe := c.client.TxPipeline()
		pipe.Incr(ctx, c.generationKey(ownerID))
		pipe.Del(ctx, c.ownerKey(ownerID))
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
