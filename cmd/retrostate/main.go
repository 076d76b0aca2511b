package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/victorivanov/retrostate/internal/api"
	"github.com/victorivanov/retrostate/internal/auth"
	"github.com/victorivanov/retrostate/internal/config"
	"github.com/victorivanov/retrostate/internal/database"
	"github.com/victorivanov/retrostate/internal/gateway"
	"github.com/victorivanov/retrostate/internal/loader"
	"github.com/victorivanov/retrostate/internal/observability"
	redisclient "github.com/victorivanov/retrostate/internal/redis"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/store"
	"github.com/victorivanov/retrostate/internal/timeline"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("retrostate exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Session user ---

	tokens := auth.NewTokenReader(cfg.TokenSecret)
	if !tokens.Verifies() {
		logger.Warn("TOKEN_SECRET not set, session token signature is not verified")
	}
	me, err := tokens.SessionUserID(cfg.SessionToken)
	if err != nil {
		return err
	}

	// --- Infrastructure ---

	pool, err := database.NewPostgresPool(sigCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	catalog := database.NewCatalog(pool)

	// Redis is optional: without it there is no presence and no rate limit.
	var limiter api.RateLimiter
	var presence api.PresencePublisher
	loadOpts := []loader.Option{loader.WithLogger(logger)}
	rdb, err := redisclient.NewClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, continuing without presence", "error", err)
	} else {
		defer rdb.Close()
		limiter, presence = rdb, rdb
		loadOpts = append(loadOpts, loader.WithPresence(rdb))
	}

	sf, err := snowflake.NewGenerator(1, 1)
	if err != nil {
		return err
	}

	// --- Session ---

	sess := store.NewSession(me,
		store.WithLogger(logger),
		store.WithRecorder(observability.StoreRecorder{}),
		store.WithIDGenerator(sf),
		store.WithTimelineOptions(timeline.WithGap(cfg.GroupGap), timeline.WithLocation(cfg.Location)),
	)
	defer sess.Close()

	loadCtx, cancel := context.WithTimeout(sigCtx, time.Minute)
	rep, err := loader.New(catalog, loadOpts...).Load(loadCtx, sess)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("session loaded", "channels", rep.Channels, "messages", rep.Messages)

	// --- Live feed ---

	feedCtx, stopFeed := context.WithCancel(sigCtx)
	var feedStopped <-chan struct{}
	if cfg.GatewayURL != "" {
		feed := gateway.NewClient(cfg.GatewayURL, cfg.SessionToken, sess, gateway.WithLogger(logger))
		feedStopped = startFeed(feedCtx, feed, logger)
	}
	// Deferred after sess.Close, so it runs first: the feed must stop
	// applying events before the stores are reset.
	defer func() {
		stopFeed()
		if feedStopped != nil {
			<-feedStopped
		}
	}()

	// --- Echo ---

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	api.SetupRouter(e, &api.Dependencies{
		Session:  sess,
		Channels: api.NewChannelHandler(sess, catalog),
		Users:    api.NewUserHandler(sess.Users, catalog, presence),
		Limiter:  limiter,
	})

	// --- Start ---

	errCh := make(chan error, 1)
	go func() {
		logger.Info("retrostate starting", "addr", cfg.ServerAddr, "user_id", me, "session_id", sess.ID.String())
		if err := e.Start(cfg.ServerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
