package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/cache"
	"github.com/flatfinder/flatfinder/internal/config"
	"github.com/flatfinder/flatfinder/internal/db"
	"github.com/flatfinder/flatfinder/internal/logger"
	"github.com/flatfinder/flatfinder/internal/server"
	"github.com/flatfinder/flatfinder/internal/service/chat"
	"github.com/flatfinder/flatfinder/internal/service/discover"
	"github.com/flatfinder/flatfinder/internal/service/listing"
	"github.com/flatfinder/flatfinder/internal/service/support"
	"github.com/flatfinder/flatfinder/internal/ws"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Live-update hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	appCtx := app.New(database, redisCache, hub, log)

	registrars := []server.Registrar{
		discover.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
		listing.NewRegistrar(appCtx),
		support.NewRegistrar(appCtx),
	}

	router := server.NewRouter(cfg, hub, registrars...)

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting http server", "addr", addr)

	if err := server.Start(ctx, cfg, router); err != nil {
		log.Error("http server stopped", "err", err)
	}
}
