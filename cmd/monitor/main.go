package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch/internal/config"
	"github.com/noah-isme/gradewatch/internal/database"
	"github.com/noah-isme/gradewatch/internal/fetcher"
	"github.com/noah-isme/gradewatch/internal/handler"
	"github.com/noah-isme/gradewatch/internal/notifier"
	"github.com/noah-isme/gradewatch/internal/repository"
	"github.com/noah-isme/gradewatch/internal/router"
	"github.com/noah-isme/gradewatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var db *gorm.DB
	if cfg.UsesPostgres() {
		db, err = database.ConnectPostgres(cfg.DatabaseURL)
	} else {
		db, err = database.ConnectSQLite(cfg.DatabasePath)
	}
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	store, err := repository.NewGradeStore(db, logger)
	if err != nil {
		log.Fatalf("failed to initialize grade store: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	comparator := service.NewComparatorService(store, logger)
	changeLog := service.NewChangeLogService(cfg.ChangeLogPath, cfg.ChangeLogMaxAge, logger)
	snapshotFetcher := fetcher.NewFileFetcher(cfg.SnapshotDir, logger)
	changeNotifier := notifier.NewLogNotifier(logger)
	pipeline := service.NewPipelineService(snapshotFetcher, comparator, changeNotifier, changeLog, validate, logger)

	statusHandler := handler.NewStatusHandler(pipeline, store, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})
	router.Register(app, cfg, router.Dependencies{StatusHandler: statusHandler})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	runCycles(ctx, cfg, pipeline, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down ops server")
	}

	logger.Info().Msg("monitor stopped")
}

// runCycles drives the pipeline on a fixed interval until the context ends.
// The cadence lives here, outside the detection core.
func runCycles(ctx context.Context, cfg config.Config, pipeline *service.PipelineService, logger zerolog.Logger) {
	runOne := func() {
		if _, err := pipeline.RunCycle(ctx); err != nil {
			logger.Error().Err(err).Msg("monitoring cycle failed")
		}
	}

	runOne()
	if cfg.RunOnce {
		return
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOne()
		}
	}
}
