package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/traP-jp/ShoutWars-server/internal/v1/bus"
	"github.com/traP-jp/ShoutWars-server/internal/v1/config"
	"github.com/traP-jp/ShoutWars-server/internal/v1/logging"
	"github.com/traP-jp/ShoutWars-server/internal/v1/ratelimit"
	"github.com/traP-jp/ShoutWars-server/internal/v1/roomregistry"
	"github.com/traP-jp/ShoutWars-server/internal/v1/sessionregistry"
	"github.com/traP-jp/ShoutWars-server/internal/v1/sweeper"
	"github.com/traP-jp/ShoutWars-server/internal/v1/tracing"
	"github.com/traP-jp/ShoutWars-server/internal/v1/transport"
)

func main() {
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	logAdapter := logging.Adapter{}

	tp, err := tracing.InitTracer(context.Background(), "shoutwars-server")
	if err != nil {
		logAdapter.Error("failed to initialize tracer", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logAdapter.Error("tracer shutdown failed", "error", err.Error())
		}
	}()

	var eventBus *bus.Service
	if cfg.RedisEnabled {
		eventBus, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logAdapter.Warn("event bus disabled: redis unreachable", "error", err.Error())
			eventBus = nil
		} else {
			defer eventBus.Close()
		}
	}

	rl, err := ratelimit.NewRateLimiter(cfg, eventBus.Client())
	if err != nil {
		logAdapter.Error("failed to initialize rate limiter", "error", err.Error())
		os.Exit(1)
	}

	rooms := roomregistry.New(cfg.RoomLimit, cfg.LobbyLifetime, cfg.GameLifetime, logAdapter)
	rooms.SetBus(eventBus)
	sessions := sessionregistry.New(logAdapter)

	sw := sweeper.New(rooms, sessions, sweeper.DefaultInterval, sweeper.DefaultUserTimeout, logAdapter)
	sw.Start(context.Background())

	srv := transport.New(rooms, sessions, eventBus)
	origins := strings.Split(cfg.AllowedOrigins, ",")
	router := transport.NewRouter(srv, rl, cfg.Password, origins)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logAdapter.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logAdapter.Error("server failed", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logAdapter.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logAdapter.Error("server forced to shutdown", "error", err.Error())
	}
	if err := sw.Stop(ctx); err != nil {
		logAdapter.Error("sweeper did not stop cleanly", "error", err.Error())
	}

	logAdapter.Info("server exited")
}
