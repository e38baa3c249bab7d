// Command scribble-backend serves the /api/r1 resource collections for the
// catalog types, backed by MongoDB or an in-process store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ella-cms/scribble/internal/api"
	"github.com/ella-cms/scribble/internal/catalog"
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/ports"
	"github.com/ella-cms/scribble/internal/core/service"
	"github.com/ella-cms/scribble/internal/infrastructure/db/memory"
	mongodb "github.com/ella-cms/scribble/internal/infrastructure/db/mongo"
	redisdb "github.com/ella-cms/scribble/internal/infrastructure/db/redis"
	"github.com/ella-cms/scribble/internal/pkg/config"
	"github.com/ella-cms/scribble/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "scribble-backend",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]func(context.Context) error{}

	// --- Store ---
	var store ports.ResourceStore
	switch cfg.Store {
	case "mongo":
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "scribble-backend",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongo")
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()
		store = mongodb.NewResourceRepository(db)
		checks["mongo"] = mongodb.Ping(db)
	default:
		store = memory.NewStore()
	}

	// --- Redis (readiness only) ---
	if cfg.Redis.Enabled {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		checks["redis"] = redisdb.Ping(rdb)
	}

	deps := api.Deps{
		Types:      catalog.MustNew(entity.WithLogger(logger.Component("entity"))),
		Store:      store,
		JWTSecret:  cfg.JWTSecret,
		Checks:     checks,
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
		Log:        logger.Component("api"),
	}
	if cfg.JWTSecret != "" {
		deps.Auth = service.NewAuthService(store, catalog.User, cfg.JWTSecret, cfg.TokenRole, cfg.TokenTTL)
	} else {
		log.Warn().Msg("JWT_SECRET not set, resource routes are unauthenticated")
	}
	e := api.NewRouter(deps)

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
