package app

import (
	"log/slog"

	"github.com/flatfinder/flatfinder/internal/cache"
	"github.com/flatfinder/flatfinder/internal/ws"
	"gorm.io/gorm"
)

// AppContext holds shared dependencies (DB, Redis, websocket hub, Logger).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Hub        *ws.Hub
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, hub *ws.Hub, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Hub:        hub,
		Logger:     logger,
	}
}
