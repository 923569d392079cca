package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/feedbackvault/internal/api"
	"github.com/org/feedbackvault/internal/app"
	"github.com/org/feedbackvault/internal/audit"
	"github.com/org/feedbackvault/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfgFile := config.Path()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfgFile).Msg("invalid configuration")
	}
	app.ConfigureLogging(cfg)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	var auditor api.AuditLogger
	if cfg.Audit.Enabled {
		auditor = audit.NewLogger(os.Stdout)
	}

	srv := api.NewServer(a.Service, a.Authorizer, auditor, api.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().
		Str("addr", cfg.Server.ListenAddr).
		Str("store", cfg.Store.Backend).
		Str("auth", cfg.Auth.Mode).
		Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
