package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procedure-staffing-api/internal/repository"
)

func TestReadThroughCachesLoaderResult(t *testing.T) {
	cache := NewCacheService(repository.NewMemoryCacheRepository(), nil, time.Minute, nil, true)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) ([]string, error) {
		calls++
		return []string{"p-1"}, nil
	}

	_, hit, err := ReadThrough(ctx, cache, "postings:k", time.Minute, loader)
	require.NoError(t, err)
	require.False(t, hit)

	value, hit, err := ReadThrough(ctx, cache, "postings:k", time.Minute, loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []string{"p-1"}, value)
	require.Equal(t, 1, calls)
}

func TestReadThroughDropsResultLoadedAcrossInvalidate(t *testing.T) {
	cache := NewCacheService(repository.NewMemoryCacheRepository(), nil, time.Minute, nil, true)
	ctx := context.Background()

	value, _, err := ReadThrough(ctx, cache, "postings:k", time.Minute, func(ctx context.Context) (string, error) {
		require.NoError(t, cache.Invalidate(ctx, "postings:*"))
		return "stale", nil
	})
	require.NoError(t, err)
	require.Equal(t, "stale", value)

	var cached string
	hit, err := cache.Get(ctx, "postings:k", &cached)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestReadThroughWithDisabledCache(t *testing.T) {
	var cache *CacheService
	value, hit, err := ReadThrough(context.Background(), cache, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 7, value)
}
