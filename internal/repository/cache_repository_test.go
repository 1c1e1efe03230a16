package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client), srv
}

type cachedCourse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "courses:all", []cachedCourse{{ID: "c-1", Name: "Compilers"}}, time.Minute))
	assert.True(t, srv.Exists("courses:all"))

	var got []cachedCourse
	require.NoError(t, repo.Get(ctx, "courses:all", &got))
	assert.Equal(t, []cachedCourse{{ID: "c-1", Name: "Compilers"}}, got)

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "courses:all", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "courses:all", []string{"a"}, time.Minute))
	require.NoError(t, repo.Set(ctx, "courses:mine:ins-1", []string{"b"}, time.Minute))
	require.NoError(t, repo.Set(ctx, "users:1", "x", time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "courses:*"))
	assert.False(t, srv.Exists("courses:all"))
	assert.False(t, srv.Exists("courses:mine:ins-1"))
	assert.True(t, srv.Exists("users:1"))
}

func TestCacheRepositoryNilClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil)
	var dest string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Second))
}

func TestCacheRepositoryDeleteByPatternSpansBatches(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	for i := 0; i < scanBatch*2+5; i++ {
		require.NoError(t, srv.Set(fmt.Sprintf("courses:page:%d", i), "x"))
	}
	require.NoError(t, srv.Set("users:1", "x"))

	require.NoError(t, repo.DeleteByPattern(ctx, "courses:*"))
	assert.Equal(t, []string{"users:1"}, srv.Keys())
}
