package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires Redis on localhost:6379, skipped otherwise.
const testRedisAddr = "localhost:6379"

func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { client.Close() })

	return New(client, "test:"+uuid.NewString()+":", time.Minute, nil)
}

type entry struct {
	Title string `json:"title"`
}

func TestCache_SetGetInvalidate(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	owner := uuid.New()

	var got []entry
	hit, err := c.GetList(ctx, owner, "q=", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	gen, err := c.Generation(ctx, owner)
	require.NoError(t, err)
	stored, err := c.SetList(ctx, owner, gen, "q=", []entry{{Title: "A"}})
	require.NoError(t, err)
	assert.True(t, stored)
	_, err = c.SetList(ctx, owner, gen, "q=a", []entry{{Title: "A"}, {Title: "a2"}})
	require.NoError(t, err)

	hit, err = c.GetList(ctx, owner, "q=", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []entry{{Title: "A"}}, got)

	require.NoError(t, c.Invalidate(ctx, owner))
	for _, q := range []string{"q=", "q=a"} {
		hit, err = c.GetList(ctx, owner, q, &got)
		require.NoError(t, err)
		assert.False(t, hit)
	}
}

func TestCache_SetListAfterInvalidateIsDropped(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	owner := uuid.New()

	before, err := c.Generation(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, owner))

	stored, err := c.SetList(ctx, owner, before, "q=", []entry{{Title: "old"}})
	require.NoError(t, err)
	assert.False(t, stored)

	var got []entry
	hit, err := c.GetList(ctx, owner, "q=", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	current, err := c.Generation(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, before+1, current)
	stored, err = c.SetList(ctx, owner, current, "q=", []entry{{Title: "new"}})
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestCache_BreakerOpensOnUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := New(client, "test:", time.Minute, nil)

	var got []entry
	for i := 0; i < 4; i++ {
		_, err := c.GetList(context.Background(), uuid.New(), "q=", &got)
		require.Error(t, err)
	}

	_, err := c.GetList(context.Background(), uuid.New(), "q=", &got)
	assert.True(t, errors.Is(err, ErrBreakerOpen))
}
