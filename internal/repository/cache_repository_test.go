package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type cachedBoard struct {
	CourseID string `json:"course_id"`
	Entries  int    `json:"entries"`
}

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "leaderboard:c1", cachedBoard{CourseID: "c1", Entries: 3}, time.Minute))
	assert.True(t, mr.Exists("cea:leaderboard:c1"))

	var got cachedBoard
	require.NoError(t, repo.Get(ctx, "leaderboard:c1", &got))
	assert.Equal(t, cachedBoard{CourseID: "c1", Entries: 3}, got)

	mr.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "leaderboard:c1", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "leaderboard:c1", 1, 0))
	require.NoError(t, repo.Set(ctx, "leaderboard:c2", 2, 0))
	require.NoError(t, repo.Set(ctx, "other:c1", 3, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "leaderboard:*"))
	assert.False(t, mr.Exists("cea:leaderboard:c1"))
	assert.False(t, mr.Exists("cea:leaderboard:c2"))
	assert.True(t, mr.Exists("cea:other:c1"))

	require.NoError(t, repo.Delete(ctx, "other:c1"))
	assert.False(t, mr.Exists("cea:other:c1"))
}

func TestCacheRepositoryCorruptEntryIsMiss(t *testing.T) {
	repo, mr := newCacheRepo(t)
	require.NoError(t, mr.Set("cea:leaderboard:c1", "{not json"))

	var got cachedBoard
	err := repo.Get(context.Background(), "leaderboard:c1", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.False(t, mr.Exists("cea:leaderboard:c1"))
}

func TestCacheRepositoryDisabled(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	assert.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	var v int
	assert.ErrorIs(t, repo.Get(ctx, "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.DeleteByPattern(ctx, "*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
