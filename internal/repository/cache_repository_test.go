package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo := NewCacheRepository(nil, "staffing", nil)
	require.Equal(t, "staffing:postings:visible:a", repo.key("postings:visible:a"))

	bare := NewCacheRepository(nil, "", nil)
	require.Equal(t, "postings:*", bare.key("postings:*"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "staffing", nil)
	ctx := context.Background()

	var dest []string
	require.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "k", []string{"v"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "*"))
	require.NoError(t, repo.Close())
}

func TestCacheRepositorySurfacesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewCacheRepository(client, "staffing", nil)
	defer repo.Close()
	ctx := context.Background()

	var dest []string
	err := repo.Get(ctx, "k", &dest)
	require.Error(t, err)
	require.NotErrorIs(t, err, appErrors.ErrCacheMiss)
	require.Error(t, repo.Set(ctx, "k", []string{"v"}, time.Minute))
}
