package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemember_NilCachePassesThrough(t *testing.T) {
	var c *cache.Cache
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"2024-2025"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := cache.Remember(context.Background(), c, cache.KeySchoolYears, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-2025"}, got)
	}
	assert.Equal(t, 2, calls)
	assert.NotPanics(t, func() { c.Invalidate(context.Background(), cache.KeyAwards) })
	assert.NoError(t, c.Ping(context.Background()))
}

func TestRemember_DisabledCacheReturnsLoadError(t *testing.T) {
	c := cache.New(nil, time.Minute, zap.NewNop(), nil)
	assert.False(t, c.Enabled())

	boom := errors.New("boom")
	_, err := cache.Remember(context.Background(), c, cache.KeyKeywords, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestBatchKey(t *testing.T) {
	assert.Equal(t, "authors:batch:g11:2024-2025", cache.BatchKey(11, "2024-2025"))
	assert.Equal(t, "authors:batch:g12:2024-2025", cache.BatchKey(12, "2024-2025"))
}
