// Command server runs the VoicePay backend: the public HTTP API, the
// recurring-payment dispatcher, and (when chain credentials are configured)
// the on-chain executor bridge.
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
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/voicepay/go-voicepay-backend/internal/chain"
	"github.com/voicepay/go-voicepay-backend/internal/config"
	httpapi "github.com/voicepay/go-voicepay-backend/internal/http"
	"github.com/voicepay/go-voicepay-backend/internal/nlp"
	"github.com/voicepay/go-voicepay-backend/internal/observability"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/scheduler"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
	"github.com/voicepay/go-voicepay-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments use the process environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed")
		}
	}

	shards := shard.NewManager(db, cfg.ShardOpTimeout)

	// Intent parser: external service when configured, local rules otherwise.
	var parser nlp.Parser = nlp.RuleParser{}
	if cfg.ParserURL != "" {
		parser = nlp.NewHTTPParser(cfg.ParserURL, cfg.ParserTimeout)
	}

	// On-chain executor; nil disables the worker bridge route.
	var executor chain.Executor
	if cfg.Chain.RPCURL != "" && cfg.Chain.ExecutorKey != "" {
		client, err := chain.NewClient(
			cfg.Chain.RPCURL,
			cfg.Chain.ExecutorKey,
			cfg.Chain.RecurringContract,
			cfg.Chain.ChainID,
			cfg.Chain.ConfirmTimeout,
			log.With().Str("component", "chain").Logger(),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("chain client setup failed")
		}
		executor = client
	} else {
		log.Warn().Msg("chain config incomplete; worker bridge disabled")
	}

	// Dispatcher
	execClient := scheduler.NewHTTPExecutorClient(cfg.Dispatch.ExecutorURL, []byte(cfg.Auth.HMACSecret))
	disp := scheduler.New(shards, execClient, scheduler.Options{
		TickInterval:   cfg.Dispatch.Interval,
		CallTimeout:    cfg.Dispatch.Timeout,
		RetryBackoff:   cfg.Dispatch.RetryBackoff,
		Workers:        cfg.Dispatch.Workers,
		IndexOpTimeout: cfg.IndexOpTimeout,
		Token:          cfg.Chain.USDCAddress,
	}, log.With().Str("component", "dispatcher").Logger())
	if err := disp.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("dispatcher start failed")
	}

	// HTTP
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Shards:   shards,
		Parser:   parser,
		Executor: executor,
	}, cfg)

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
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	disp.Stop()
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
}
