package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/flatfinder/flatfinder/internal/config"
	"github.com/flatfinder/flatfinder/internal/logger"
	"github.com/flatfinder/flatfinder/internal/ws"
)

// NewRouter builds the gin engine and mounts all feature registrars under
// /api/v1, plus the websocket endpoint and a health probe.
func NewRouter(cfg *config.Config, hub *ws.Hub, registrars ...Registrar) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLog())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORS.Origins) == 1 && cfg.CORS.Origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.Origins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, userHeader)
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ws", RequireUser(), ws.Serve(hub))

	api := router.Group("/api/v1", RequireUser())
	for _, r := range registrars {
		r.Register(api)
	}

	return router
}

// Start serves the router until ctx is canceled, then drains in-flight
// requests before returning.
func Start(ctx context.Context, cfg *config.Config, router *gin.Engine) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur", time.Since(start),
		)
	}
}
