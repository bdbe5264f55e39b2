package chat_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/cache"
	"github.com/flatfinder/flatfinder/internal/config"
	"github.com/flatfinder/flatfinder/internal/db"
	"github.com/flatfinder/flatfinder/internal/service/chat"
	"github.com/flatfinder/flatfinder/internal/ws"
)

func setupService(t *testing.T) (*chat.Service, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(db.Models()...))

	profiles := []db.Profile{
		{UID: "u1", Name: "Alice", Location: "CBD", Budget: 300, LastActiveAt: time.Now()},
		{UID: "u2", Name: "Bob", Location: "CBD", Budget: 350, LastActiveAt: time.Now()},
		{UID: "u3", Name: "Cara", Location: "Newtown", Budget: 250, LastActiveAt: time.Now()},
	}
	require.NoError(t, dbase.Create(&profiles).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, redisCache, hub, logger)
	return chat.NewService(appCtx), dbase
}

func TestSendMessageUpdatesProjection(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	gid, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, "u1", gid, "hey Bob")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Nil(t, msg.Received)

	var g db.Group
	require.NoError(t, gdb.First(&g, "id = ?", gid).Error)
	assert.Equal(t, "hey Bob", g.LastMessage)
	assert.Equal(t, "u1", g.LastSender)
	assert.Equal(t, msg.Timestamp.UnixMilli(), g.LastTimestamp.UnixMilli())
}

func TestSendMessageRequiresMembership(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	gid, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "u3", gid, "let me in")
	assert.Error(t, err)

	_, err = svc.SendMessage(ctx, "u1", "no-such-group", "hello?")
	assert.Error(t, err)
}

func TestMessagesComeBackOldestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	gid, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, "u1", gid, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	msgs, err := svc.Messages(ctx, "u1", gid, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msgs[i].Body)
	}
	for i := 1; i < 5; i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
}

func TestChatListResolvesNullNames(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	// null-named pair chat and an explicitly named group
	pairGID, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)
	name := "flat 7 crew"
	namedGID, err := svc.CreateGroup(ctx, "u1", []string{"u2", "u3"}, &name)
	require.NoError(t, err)

	// activity in the pair chat puts it on top
	_, err = svc.SendMessage(ctx, "u2", pairGID, "hi Alice")
	require.NoError(t, err)

	entries, err := svc.ChatList(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, pairGID, entries[0].GroupID)
	assert.Equal(t, "Bob", entries[0].Name, "null name resolves to the counterpart")
	assert.Equal(t, "hi Alice", entries[0].LastMessage)
	assert.Equal(t, namedGID, entries[1].GroupID)
	assert.Equal(t, name, entries[1].Name)

	// renaming the counterpart shows up live on the next call
	require.NoError(t, gdb.Model(&db.Profile{}).Where("uid = ?", "u2").Update("name", "Robert").Error)
	entries, err = svc.ChatList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Robert", entries[0].Name)
}

func TestChatListUnknownCounterpart(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	// counterpart has no profile document at all
	gid, err := svc.CreateGroup(ctx, "u1", []string{"ghost"}, nil)
	require.NoError(t, err)

	entries, err := svc.ChatList(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, gid, entries[0].GroupID)
	assert.Equal(t, "Unknown", entries[0].Name)
	assert.NotEmpty(t, entries[0].AvatarURL)
}

func TestMarkReceived(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	gid, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)
	msg, err := svc.SendMessage(ctx, "u1", gid, "read me")
	require.NoError(t, err)

	require.NoError(t, svc.MarkReceived(ctx, "u2", gid, msg.ID))

	var stored db.Message
	require.NoError(t, gdb.First(&stored, "id = ?", msg.ID).Error)
	assert.NotNil(t, stored.Received)
}

// TestBlockFlow: blocking from a group records a terminal pass toward every
// other member and deletes the group.
func TestBlockFlow(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	gid, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u2", gid, "soon to be blocked")
	require.NoError(t, err)

	// u2 had previously been liked; the block overwrites it
	require.NoError(t, gdb.Create(&db.Swipe{SwiperUID: "u1", TargetUID: "u2", Dir: db.DirLike}).Error)

	require.NoError(t, svc.BlockUser(ctx, "u1", gid))

	var swipe db.Swipe
	require.NoError(t, gdb.First(&swipe, "swiper_uid = ? AND target_uid = ?", "u1", "u2").Error)
	assert.Equal(t, db.DirPass, swipe.Dir)

	var groups int64
	require.NoError(t, gdb.Model(&db.Group{}).Where("id = ?", gid).Count(&groups).Error)
	assert.Equal(t, int64(0), groups)

	// orphaned history remains
	var msgs int64
	require.NoError(t, gdb.Model(&db.Message{}).Where("group_id = ?", gid).Count(&msgs).Error)
	assert.Equal(t, int64(1), msgs)
}

func TestBlockMissingGroupIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	assert.NoError(t, svc.BlockUser(ctx, "u1", "gone-already"))
}

// TestNotifyThrottle: two quick sends produce a single push trigger.
func TestNotifyThrottle(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	gid, err := svc.CreateGroup(ctx, "u1", []string{"u2"}, nil)
	require.NoError(t, err)

	first, err := svc.SendMessage(ctx, "u1", gid, "one")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u1", gid, "two")
	require.NoError(t, err)

	var g db.Group
	require.NoError(t, gdb.First(&g, "id = ?", gid).Error)
	require.NotNil(t, g.LastNotified)
	// stamped by the first message, untouched by the throttled second
	assert.Equal(t, first.Timestamp.UnixMilli(), g.LastNotified.UnixMilli())
}
