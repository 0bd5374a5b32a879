// Command server runs the discount redemption HTTP API.
//
// Startup order:
//  1. Load .env (best effort) and typed configuration
//  2. Configure global zerolog logging
//  3. Initialize OpenTelemetry tracing (optional)
//  4. Open and migrate the SQLite store, instrument GORM
//  5. Connect the optional Redis preview cache
//  6. Start the reservation expiry sweeper (cron)
//  7. Serve HTTP with graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/folioforge/go-discount-backend/internal/cache"
	"github.com/folioforge/go-discount-backend/internal/config"
	httpapi "github.com/folioforge/go-discount-backend/internal/http"
	"github.com/folioforge/go-discount-backend/internal/observability"
	"github.com/folioforge/go-discount-backend/internal/repo"
	"github.com/folioforge/go-discount-backend/internal/services"
	"github.com/folioforge/go-discount-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed")
		}
	}

	// Optional Redis preview cache; the service degrades to direct DB reads
	// when unset or unreachable.
	var previewCache services.PreviewCacheStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, preview cache disabled")
		} else {
			previewCache = cache.NewPreviewCache(rdb, cfg.Redis.CacheTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("preview cache enabled")
		}
		cancel()
		defer rdb.Close()
	}

	// Reservation expiry sweeper.
	sweeper := &services.UsageLifecycleService{DB: db}
	cr := cron.New()
	if err := cr.AddFunc("@every "+cfg.SweepInterval.String(), func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.SweepInterval)
		defer cancel()
		n, err := sweeper.ExpireStale(sctx)
		if err != nil {
			log.Error().Err(err).Msg("reservation sweep failed")
			return
		}
		if n > 0 {
			log.Info().Int("expired", n).Msg("stale reservations reclaimed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("sweeper schedule failed")
	}
	cr.Start()
	defer cr.Stop()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, previewCache, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
