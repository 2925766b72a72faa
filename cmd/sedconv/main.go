// Command sedconv runs the configured pipeline once and exits. It takes no
// flags; settings come from the environment and PIPELINE_CONFIG.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sedconv/internal/config"
	"github.com/RMahshie/sedconv/internal/convolve"
	"github.com/RMahshie/sedconv/internal/filters"
	"github.com/RMahshie/sedconv/internal/processing"
	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/internal/repository/memory"
	"github.com/RMahshie/sedconv/internal/repository/postgres"
	"github.com/RMahshie/sedconv/internal/storage"
	"github.com/RMahshie/sedconv/pkg/models"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	pipeline, err := config.LoadPipeline(cfg.Pipeline.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pipeline configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.StorageFor(pipeline.OutputRoot))
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to initialize artifact store")
	}

	var runRepo repository.RunRepository = memory.NewRunRepository()
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		runRepo = postgres.NewPostgresRunRepository(db)
	}

	driver := convolve.NewDriver(convolve.NewDirReader(), convolve.TrapezoidConvolver{}, store)
	svc := processing.NewPipelineService(pipeline, filters.NewLoader(pipeline.FilterDir), driver, runRepo)

	runID := uuid.New()
	now := time.Now()
	if err := runRepo.Create(ctx, &models.Run{
		ID:        runID.String(),
		Status:    models.StatusPending,
		Stages:    pipeline.Stages,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to create run")
	}

	if err := svc.Run(ctx, runID); err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Pipeline failed")
		stop()
		os.Exit(1)
	}

	log.Info().
		Str("run_id", runID.String()).
		Str("output", store.Location("")).
		Dur("elapsed", time.Since(now)).
		Msg("Pipeline finished")
}
