package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatfinder/flatfinder/internal/repository"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestUpsertIsMergePatch(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewProfileRepository(dbase)

	// first write creates the profile
	require.NoError(t, repo.Upsert(ctx, "u1", repository.ProfilePatch{
		Name:   strPtr("Sam"),
		Budget: i64Ptr(400),
	}))

	// a later patch must not clobber unrelated fields
	require.NoError(t, repo.Upsert(ctx, "u1", repository.ProfilePatch{
		Bio: strPtr("quiet, works from home"),
	}))

	p, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Sam", p.Name)
	assert.Equal(t, int64(400), p.Budget)
	assert.Equal(t, "quiet, works from home", p.Bio)
}

func TestUpsertRefreshesLastActive(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewProfileRepository(dbase)

	require.NoError(t, repo.Upsert(ctx, "u1", repository.ProfilePatch{Name: strPtr("Sam")}))
	p1, err := repo.Get(ctx, "u1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.Upsert(ctx, "u1", repository.ProfilePatch{Bio: strPtr("hey")}))
	p2, err := repo.Get(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, p2.LastActiveAt.After(p1.LastActiveAt))
}

func TestGetMissingProfileIsNil(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))

	p, err := repo.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func seedProfiles(t *testing.T, repo *repository.ProfileRepository) {
	t.Helper()
	ctx := context.Background()

	// inserted oldest-activity first; Upsert stamps last_active_at as it goes
	seed := []struct {
		uid    string
		area   string
		budget int64
	}{
		{"cheap", "CBD", 200},
		{"mid", "CBD", 300},
		{"rich", "CBD", 600},
		{"elsewhere", "Newtown", 250},
	}
	for _, s := range seed {
		require.NoError(t, repo.Upsert(ctx, s.uid, repository.ProfilePatch{
			Name:     strPtr(s.uid),
			Budget:   i64Ptr(s.budget),
			Location: strPtr(s.area),
		}))
	}
}

func TestFindCandidatesBudgetOrdering(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))
	seedProfiles(t, repo)

	got, err := repo.FindCandidates(ctx, repository.CandidateQuery{
		Area:      "CBD",
		MaxBudget: i64Ptr(500),
		Limit:     30,
	})
	require.NoError(t, err)

	// non-decreasing budget, everyone under the ceiling, area respected
	require.Len(t, got, 2)
	assert.Equal(t, "cheap", got[0].UID)
	assert.Equal(t, "mid", got[1].UID)
}

func TestFindCandidatesWithoutBudgetOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))
	seedProfiles(t, repo)

	got, err := repo.FindCandidates(ctx, repository.CandidateQuery{Limit: 30})
	require.NoError(t, err)
	require.Len(t, got, 4)

	// nil budget omits the constraint entirely; newest activity first
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].LastActiveAt.After(got[i-1].LastActiveAt))
	}
}

func TestFindCandidatesRespectsLimit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))
	seedProfiles(t, repo)

	got, err := repo.FindCandidates(ctx, repository.CandidateQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
