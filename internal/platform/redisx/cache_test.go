package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithClient(logger.Nop(), rdb, "test:"), mr
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "transcript:abc", map[string]string{"text": "hi"}, time.Minute))
	assert.True(t, mr.Exists("test:transcript:abc"))

	var got map[string]string
	ok, err := c.GetJSON(ctx, "transcript:abc", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hi", got["text"])

	mr.FastForward(2 * time.Minute)
	ok, err = c.GetJSON(ctx, "transcript:abc", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("test:bad", "{not json"))

	var out map[string]any
	ok, err := c.GetJSON(context.Background(), "bad", &out)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:bad"))
}
