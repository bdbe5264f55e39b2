package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatfinder/flatfinder/internal/db"
	"github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/repository"
)

func TestEnsureMatchGroupCreatesOnce(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	id1, created1, err := repo.EnsureMatchGroup(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, created1)
	require.NotEmpty(t, id1)

	// re-triggered mutual like, reversed order: same group back
	id2, created2, err := repo.EnsureMatchGroup(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id1, id2)

	var count int64
	require.NoError(t, dbase.Model(&db.Group{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	g, err := repo.Get(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, g)
	require.Len(t, g.Members, 2)
	assert.ElementsMatch(t, []string{"u1", "u2"},
		[]string{g.Members[0].UID, g.Members[1].UID})
}

func TestCreateGroupManual(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	name := "house hunt crew"
	id, err := repo.CreateGroup(ctx, []string{"u1", "u2", "u3"}, &name)
	require.NoError(t, err)

	g, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, g)
	require.NotNil(t, g.Name)
	assert.Equal(t, name, *g.Name)
	assert.Nil(t, g.PairKey)
	assert.Len(t, g.Members, 3)
	// member ordering preserved
	assert.Equal(t, "u1", g.Members[0].UID)
	assert.Equal(t, "u3", g.Members[2].UID)
}

func TestAppendMessageUpdatesProjection(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	id, _, err := repo.EnsureMatchGroup(ctx, "u1", "u2")
	require.NoError(t, err)

	msg, err := repo.AppendMessage(ctx, id, "u1", "hello there")
	require.NoError(t, err)
	require.NotNil(t, msg)

	g, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello there", g.LastMessage)
	assert.Equal(t, "u1", g.LastSender)
	assert.Equal(t, msg.Timestamp.UnixMilli(), g.LastTimestamp.UnixMilli())
}

func TestAppendMessageToMissingGroupFails(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	_, err := repo.AppendMessage(ctx, "no-such-group", "u1", "hi")
	require.Error(t, err)

	// the message write must have rolled back with the failed lookup
	var count int64
	require.NoError(t, dbase.Model(&db.Message{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	mapped := errors.Map(err)
	var appErr *errors.AppError
	require.ErrorAs(t, mapped, &appErr)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestMarkReceivedSetsOnce(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	id, _, err := repo.EnsureMatchGroup(ctx, "u1", "u2")
	require.NoError(t, err)
	msg, err := repo.AppendMessage(ctx, id, "u1", "hello")
	require.NoError(t, err)

	require.NoError(t, repo.MarkReceived(ctx, id, msg.ID))

	var stored db.Message
	require.NoError(t, dbase.First(&stored, "id = ?", msg.ID).Error)
	require.NotNil(t, stored.Received)
	firstReceipt := *stored.Received

	// second acknowledge is a no-op
	require.NoError(t, repo.MarkReceived(ctx, id, msg.ID))
	require.NoError(t, dbase.First(&stored, "id = ?", msg.ID).Error)
	assert.Equal(t, firstReceipt.UnixMilli(), stored.Received.UnixMilli())
}

func TestDeleteGroupOrphansMessages(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	id, _, err := repo.EnsureMatchGroup(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, id, "u1", "hello")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))

	g, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, g)

	var members int64
	require.NoError(t, dbase.Model(&db.GroupMember{}).Where("group_id = ?", id).Count(&members).Error)
	assert.Equal(t, int64(0), members)

	// history is orphaned, not erased
	var msgs int64
	require.NoError(t, dbase.Model(&db.Message{}).Where("group_id = ?", id).Count(&msgs).Error)
	assert.Equal(t, int64(1), msgs)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewGroupRepository(dbase)

	g1, _, err := repo.EnsureMatchGroup(ctx, "me", "a")
	require.NoError(t, err)
	g2, _, err := repo.EnsureMatchGroup(ctx, "me", "b")
	require.NoError(t, err)

	// activity in g1 makes it the most recent
	_, err = repo.AppendMessage(ctx, g2, "b", "first")
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, g1, "a", "second")
	require.NoError(t, err)

	groups, err := repo.ListForUser(ctx, "me")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, g1, groups[0].ID)
	assert.Equal(t, g2, groups[1].ID)

	// a stranger sees nothing
	none, err := repo.ListForUser(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}
