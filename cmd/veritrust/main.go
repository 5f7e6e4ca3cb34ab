package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veritrust/veritrust/internal/analyze"
	"github.com/veritrust/veritrust/internal/api"
	"github.com/veritrust/veritrust/internal/auth"
	"github.com/veritrust/veritrust/internal/config"
	"github.com/veritrust/veritrust/internal/database"
	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	generateConfig := flag.Bool("generate-config", false, "write a sample configuration file and exit")
	flag.Parse()

	if *generateConfig {
		if err := config.GenerateSample(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	store, err := database.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	provider, err := llm.NewProvider(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize LLM provider")
	}

	analyzer := analyze.NewAnalyzer(&cfg.Analysis, provider)
	authSvc := auth.NewService(store, &cfg.Auth)
	persister := worker.NewPersister(store, 4, 256)

	// Expired sessions are swept hourly.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepSessions(sweepCtx, authSvc)

	router := api.NewRouter(cfg, store, analyzer, authSvc, persister)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("provider", provider.Name()).
			Msg("VeriTrust listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}

	// Drain the persistence queue before closing the store.
	persister.Close()

	log.Info().Msg("Server stopped")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func sweepSessions(ctx context.Context, authSvc *auth.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authSvc.PurgeExpired(ctx); err != nil {
				log.Error().Err(err).Msg("Session sweep failed")
			}
		}
	}
}
