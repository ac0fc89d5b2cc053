// Command server runs the QC scanning backend: a local HTTP API that fronts
// the Apps Script spreadsheet endpoint with caching, retries, idempotent
// submissions, and an offline-tolerant local store.
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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scanline/go-qc-backend/internal/config"
	httpapi "github.com/scanline/go-qc-backend/internal/http"
	"github.com/scanline/go-qc-backend/internal/observability"
	"github.com/scanline/go-qc-backend/internal/services"
	"github.com/scanline/go-qc-backend/internal/sheets"
	"github.com/scanline/go-qc-backend/internal/store"
	"github.com/scanline/go-qc-backend/internal/sysutil"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

// @title        QC Scan Backend API
// @version      1.0
// @description  Barcode-driven quality-control backend: master product data, QC submissions, and sync against a spreadsheet endpoint.
// @BasePath     /api/v1
func main() {
	// Local development convenience; the file is absent in production.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "qc-backend").Logger()

	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open local store")
	}
	if cfg.OTEL.Enabled {
		if err := store.EnableTracing(db); err != nil {
			logger.Warn().Err(err).Msg("store tracing unavailable")
		}
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate local store")
	}
	st := store.New(db)

	// The spreadsheet endpoint is resolved per request so a runtime override
	// saved through the settings API takes effect without a restart.
	endpoint := func() string {
		var u string
		if ok, err := st.GetJSON(context.Background(), store.KeyAPIURL, &u); err == nil && ok && u != "" {
			return u
		}
		return cfg.Sheets.DefaultURL
	}
	remote := sheets.New(cfg.Sheets, endpoint, sheets.WithLogger(logger))

	svc := services.NewSyncService(st, remote, cfg, logger)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("stopped")
}
