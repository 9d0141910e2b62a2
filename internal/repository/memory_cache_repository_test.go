package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

func TestMemoryCacheRepositoryRoundTripAndExpiry(t *testing.T) {
	repo := NewMemoryCacheRepository()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "postings:status:available", []string{"p-1"}, time.Minute))

	var got []string
	require.NoError(t, repo.Get(ctx, "postings:status:available", &got))
	require.Equal(t, []string{"p-1"}, got)

	now = now.Add(time.Minute)
	err := repo.Get(ctx, "postings:status:available", &got)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestMemoryCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "postings:status:available", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "postings:visible:cand-1", 2, time.Minute))
	require.NoError(t, repo.Set(ctx, "candidates:page:1", 3, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "postings:*"))

	var v int
	require.ErrorIs(t, repo.Get(ctx, "postings:status:available", &v), appErrors.ErrCacheMiss)
	require.ErrorIs(t, repo.Get(ctx, "postings:visible:cand-1", &v), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "candidates:page:1", &v))
	require.Equal(t, 3, v)
}

func TestMemoryCacheRepositoryPrefixPatternSpansSlashes(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "candidates:o/brien:1:50", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "postings:status:any:poster:clinic/north", 2, time.Minute))
	require.NoError(t, repo.Set(ctx, "postings:visible:cand-1", 3, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "candidates:*"))
	require.NoError(t, repo.DeleteByPattern(ctx, "postings:status:*"))

	var v int
	require.ErrorIs(t, repo.Get(ctx, "candidates:o/brien:1:50", &v), appErrors.ErrCacheMiss)
	require.ErrorIs(t, repo.Get(ctx, "postings:status:any:poster:clinic/north", &v), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "postings:visible:cand-1", &v))
}
