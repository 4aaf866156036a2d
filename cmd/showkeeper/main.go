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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/activity/jellyfin"
	"github.com/showkeeper/showkeeper/internal/activity/tautulli"
	"github.com/showkeeper/showkeeper/internal/api"
	"github.com/showkeeper/showkeeper/internal/cleanup"
	"github.com/showkeeper/showkeeper/internal/config"
	"github.com/showkeeper/showkeeper/internal/database"
	"github.com/showkeeper/showkeeper/internal/intake"
	"github.com/showkeeper/showkeeper/internal/library/sonarr"
	"github.com/showkeeper/showkeeper/internal/logger"
	"github.com/showkeeper/showkeeper/internal/metadata/tmdb"
	"github.com/showkeeper/showkeeper/internal/retention"
	"github.com/showkeeper/showkeeper/internal/rules"
	"github.com/showkeeper/showkeeper/internal/scheduler"
)

func main() {
	// Populate environment from .env when present; real env wins.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	log := appLogger.Logger

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("showkeeper exited with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	lib, err := sonarr.NewClient(sonarr.ClientConfig{
		URL:     cfg.Library.URL,
		APIKey:  cfg.Library.APIKey,
		Timeout: cfg.Library.TimeoutSeconds,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("failed to create library client: %w", err)
	}

	// Activity sources in resolution order. Tautulli first when both
	// history providers are configured.
	var sources []activity.Source
	if cfg.Tautulli.Configured() {
		tautulliClient, err := tautulli.NewClient(tautulli.ClientConfig{
			URL:     cfg.Tautulli.URL,
			APIKey:  cfg.Tautulli.APIKey,
			Timeout: cfg.Tautulli.TimeoutSeconds,
			Logger:  log,
		})
		if err != nil {
			return fmt.Errorf("failed to create tautulli client: %w", err)
		}
		sources = append(sources, tautulliClient)
		log.Info().Msg("tautulli history provider enabled")
	}

	var jellyfinClient *jellyfin.Client
	if cfg.Jellyfin.Configured() {
		jellyfinClient, err = jellyfin.NewClient(jellyfin.ClientConfig{
			URL:      cfg.Jellyfin.URL,
			APIKey:   cfg.Jellyfin.APIKey,
			Username: cfg.Jellyfin.User,
			Timeout:  cfg.Jellyfin.TimeoutSeconds,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("failed to create jellyfin client: %w", err)
		}
		sources = append(sources, jellyfinClient)
		log.Info().Msg("jellyfin history provider enabled")
	}

	ruleStore := rules.NewStore(db.Conn())
	activityStore := activity.NewStore(db.Conn())
	resolver := activity.NewResolver(activityStore, lib, sources, log)

	settings := cleanup.NewSettings(db.Conn())
	ctx := context.Background()
	globalSettings, err := settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cleanup settings: %w", err)
	}

	retentionSvc := retention.NewService(lib, ruleStore, activityStore, settings.DryRun, log)
	gate := cleanup.NewGate(lib, settings)
	sweeper := cleanup.NewSweeper(lib, ruleStore, resolver, settings, gate, log)

	var titleSource intake.AlternateTitleSource
	if cfg.Metadata.TMDBAPIKey != "" {
		titleSource = tmdb.NewClient(tmdb.ClientConfig{
			APIKey: cfg.Metadata.TMDBAPIKey,
			Logger: log,
		})
		log.Info().Msg("TMDB alternate-title matching enabled")
	}

	dedup := intake.NewDeduper()
	matcher := intake.NewMatcher(lib, titleSource, log)
	processor := intake.NewProcessor(matcher, dedup, retentionSvc, log)

	var poller *intake.Poller
	var sessionPollers *intake.SessionPollers
	if jellyfinClient != nil && cfg.Polling.Enabled {
		poller = intake.NewPoller(jellyfinClient, processor, dedup, intake.PollerConfig{
			Interval:       time.Duration(cfg.Polling.IntervalMinutes) * time.Minute,
			TriggerPercent: cfg.Polling.TriggerPercent,
		}, log)
		poller.Start()
		defer poller.Stop()

		sessionPollers = intake.NewSessionPollers(jellyfinClient, processor, cfg.Polling.TriggerPercent, log)
		defer sessionPollers.StopAll()
	}

	sched, err := scheduler.New(log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	err = sched.RegisterTask(scheduler.TaskConfig{
		ID:          "cleanup-sweep",
		Name:        "Cleanup Sweep",
		Description: "Runs the dormant and grace-period cleanup phases",
		Cron:        fmt.Sprintf("0 */%d * * *", globalSettings.CleanupIntervalHours),
		RunOnStart:  cfg.Cleanup.RunOnStart,
		Func: func(ctx context.Context) error {
			_, err := sweeper.Run(ctx)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register cleanup task: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler stop failed")
		}
	}()

	intakeHandlers := intake.NewHandlers(processor, sessionPollers, poller)
	cleanupHandlers := cleanup.NewHandlers(sweeper, gate)
	server := api.NewServer(intakeHandlers, cleanupHandlers, log)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	log.Info().
		Str("address", cfg.Server.Address()).
		Str("library", cfg.Library.URL).
		Msg("showkeeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("showkeeper stopped")
	return nil
}
