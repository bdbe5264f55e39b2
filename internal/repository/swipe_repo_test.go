package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flatfinder/flatfinder/internal/db"
	"github.com/flatfinder/flatfinder/internal/repository"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestRecordSwipeIsIdempotentPerPair(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	// like, then overwrite with pass
	require.NoError(t, repo.RecordSwipe(ctx, "u1", "u2", db.DirLike))
	require.NoError(t, repo.RecordSwipe(ctx, "u1", "u2", db.DirPass))

	var swipes []db.Swipe
	require.NoError(t, dbase.Find(&swipes).Error)
	require.Len(t, swipes, 1)
	assert.Equal(t, db.DirPass, swipes[0].Dir)
	assert.Equal(t, "u1", swipes[0].SwiperUID)
	assert.Equal(t, "u2", swipes[0].TargetUID)
}

func TestFetchSwipedSet(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	require.NoError(t, repo.RecordSwipe(ctx, "u1", "a", db.DirLike))
	require.NoError(t, repo.RecordSwipe(ctx, "u1", "b", db.DirPass))
	require.NoError(t, repo.RecordSwipe(ctx, "other", "c", db.DirLike))

	set, err := repo.FetchSwipedSet(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a")
	assert.Contains(t, set, "b")
	assert.NotContains(t, set, "c")
}

func TestFetchSwipedSetIsCapped(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	for i := 0; i < 510; i++ {
		require.NoError(t, repo.RecordSwipe(ctx, "u1", fmt.Sprintf("t%03d", i), db.DirPass))
	}

	set, err := repo.FetchSwipedSet(ctx, "u1")
	require.NoError(t, err)
	// the oldest swipes past the cap drop out; resurfacing them is accepted
	assert.Len(t, set, 500)
}

func TestGetSwipe(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	require.NoError(t, repo.RecordSwipe(ctx, "u1", "u2", db.DirLike))

	swipe, err := repo.GetSwipe(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, swipe)
	assert.Equal(t, db.DirLike, swipe.Dir)

	// absence is nil, not an error
	swipe, err = repo.GetSwipe(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Nil(t, swipe)
}

func TestGetLikersExcludesPassed(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	// u1, u2 liked target 99
	require.NoError(t, repo.RecordSwipe(ctx, "u1", "u99", db.DirLike))
	require.NoError(t, repo.RecordSwipe(ctx, "u2", "u99", db.DirLike))
	// target passed u2 → exclude
	require.NoError(t, repo.RecordSwipe(ctx, "u99", "u2", db.DirPass))

	swipes, _, err := repo.GetLikers(ctx, "u99", nil, 10)
	require.NoError(t, err)
	require.Len(t, swipes, 1)
	assert.Equal(t, "u1", swipes[0].SwiperUID)
}

func TestGetNewLikersExcludesMutual(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	require.NoError(t, repo.RecordSwipe(ctx, "u1", "u99", db.DirLike))
	require.NoError(t, repo.RecordSwipe(ctx, "u2", "u99", db.DirLike))
	// target liked u1 back → mutual, not "new"
	require.NoError(t, repo.RecordSwipe(ctx, "u99", "u1", db.DirLike))

	swipes, _, err := repo.GetNewLikers(ctx, "u99", nil, 10)
	require.NoError(t, err)
	require.Len(t, swipes, 1)
	assert.Equal(t, "u2", swipes[0].SwiperUID)
}

func TestGetLikersPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	for i := 0; i < 7; i++ {
		require.NoError(t, repo.RecordSwipe(ctx, fmt.Sprintf("liker%d", i), "u99", db.DirLike))
	}

	first, next, err := repo.GetLikers(ctx, "u99", nil, 5)
	require.NoError(t, err)
	assert.Len(t, first, 5)
	require.NotNil(t, next)

	rest, next2, err := repo.GetLikers(ctx, "u99", next, 5)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Nil(t, next2)

	// no overlap between pages
	seen := map[string]bool{}
	for _, s := range append(first, rest...) {
		assert.False(t, seen[s.SwiperUID], "duplicate liker %s across pages", s.SwiperUID)
		seen[s.SwiperUID] = true
	}
}

func TestCountLikers(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	require.NoError(t, repo.RecordSwipe(ctx, "u1", "u99", db.DirLike))
	require.NoError(t, repo.RecordSwipe(ctx, "u2", "u99", db.DirLike))
	require.NoError(t, repo.RecordSwipe(ctx, "u3", "u99", db.DirPass))
	require.NoError(t, repo.RecordSwipe(ctx, "u99", "u2", db.DirPass))

	count, err := repo.CountLikers(ctx, "u99")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
