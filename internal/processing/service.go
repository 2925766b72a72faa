package processing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sedconv/internal/config"
	"github.com/RMahshie/sedconv/internal/convolve"
	"github.com/RMahshie/sedconv/internal/filters"
	"github.com/RMahshie/sedconv/internal/metrics"
	"github.com/RMahshie/sedconv/internal/photometry"
	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/pkg/models"
)

// Progress checkpoints reported while a run executes
const (
	progressStarted    = 10
	progressLoaded     = 20
	progressNormalized = 40
	progressExported   = 50
	progressConvolved  = 90
	progressCompleted  = 100
)

// PipelineService executes pipeline runs
type PipelineService interface {
	Run(ctx context.Context, runID uuid.UUID) error
	NormalizeFilters(ctx context.Context) ([]*models.NormalizedFilterResponse, error)
}

// FamilyConvolver convolves model families and exports filter diagnostics
type FamilyConvolver interface {
	ConvolveFamily(ctx context.Context, runID, dir string, filters []*models.NormalizedFilterResponse) (*convolve.FamilyResult, error)
	ExportFilters(ctx context.Context, filters []*models.NormalizedFilterResponse) ([]string, error)
}

type pipelineService struct {
	pipeline   *config.PipelineConfig
	loader     filters.FilterLoader
	convolver  FamilyConvolver
	repository repository.RunRepository
}

// NewPipelineService creates a pipeline service for one pipeline configuration
func NewPipelineService(pipeline *config.PipelineConfig, loader filters.FilterLoader, convolver FamilyConvolver, repo repository.RunRepository) PipelineService {
	return &pipelineService{
		pipeline:   pipeline,
		loader:     loader,
		convolver:  convolver,
		repository: repo,
	}
}

// Run executes the stages recorded on the run. Any failure marks the run as
// failed with a message naming the filter or model family, and is returned.
func (s *pipelineService) Run(ctx context.Context, runID uuid.UUID) (err error) {
	done := metrics.RunStarted()
	defer func() {
		if err != nil {
			done(models.StatusFailed)
			return
		}
		done(models.StatusCompleted)
	}()

	logger := log.With().Str("run_id", runID.String()).Logger()

	// Step 1: Mark as processing
	if err := s.checkpoint(ctx, runID, models.StatusProcessing, progressStarted); err != nil {
		return err
	}

	run, err := s.repository.GetByID(ctx, runID)
	if err != nil {
		return s.fail(ctx, runID, err)
	}
	if len(run.Stages) == 0 {
		run.Stages = s.pipeline.Stages
	}
	if err := config.ValidateStages(run.Stages); err != nil {
		return s.fail(ctx, runID, err)
	}

	mode, err := photometry.ParseNormalizationMode(s.pipeline.Normalization)
	if err != nil {
		return s.fail(ctx, runID, err)
	}

	// Step 2: Load filter tables
	raw, err := filters.LoadAll(ctx, s.loader, s.pipeline.FilterTable)
	if err != nil {
		return s.fail(ctx, runID, err)
	}
	if err := s.checkpoint(ctx, runID, models.StatusProcessing, progressLoaded); err != nil {
		return err
	}

	// Step 3: Build response functions
	normalized, err := s.normalizeAll(raw, mode)
	if err != nil {
		return s.fail(ctx, runID, err)
	}
	if err := s.checkpoint(ctx, runID, models.StatusProcessing, progressNormalized); err != nil {
		return err
	}

	// Step 4: Optional diagnostics
	if run.HasStage(models.StageExport) {
		locations, err := s.convolver.ExportFilters(ctx, normalized)
		if err != nil {
			return s.fail(ctx, runID, err)
		}
		logger.Info().Int("artifacts", len(locations)).Msg("Filter responses exported")
		if err := s.checkpoint(ctx, runID, models.StatusProcessing, progressExported); err != nil {
			return err
		}
	}

	// Step 5: Convolve each model family with the whole filter set
	if run.HasStage(models.StageConvolve) {
		dirs := s.pipeline.ModelDirectories
		for i, dir := range dirs {
			result, err := s.convolver.ConvolveFamily(ctx, run.ID, dir, normalized)
			if err != nil {
				return s.fail(ctx, runID, err)
			}
			if err := s.repository.StoreFluxes(ctx, result.Fluxes); err != nil {
				return s.fail(ctx, runID, fmt.Errorf("model family %s: failed to store fluxes: %w", result.Family, err))
			}
			metrics.RecordModelsConvolved(result.Family, result.Models)

			progress := progressExported + (progressConvolved-progressExported)*(i+1)/len(dirs)
			if err := s.checkpoint(ctx, runID, models.StatusProcessing, progress); err != nil {
				return err
			}
		}
	}

	// Step 6: Mark complete
	if err := s.checkpoint(ctx, runID, models.StatusCompleted, progressCompleted); err != nil {
		return err
	}

	logger.Info().
		Strs("stages", run.Stages).
		Int("filters", len(normalized)).
		Msg("Pipeline run completed")

	return nil
}

// NormalizeFilters loads and normalizes the configured filter set without
// recording a run.
func (s *pipelineService) NormalizeFilters(ctx context.Context) ([]*models.NormalizedFilterResponse, error) {
	mode, err := photometry.ParseNormalizationMode(s.pipeline.Normalization)
	if err != nil {
		return nil, err
	}
	raw, err := filters.LoadAll(ctx, s.loader, s.pipeline.FilterTable)
	if err != nil {
		return nil, err
	}
	return s.normalizeAll(raw, mode)
}

func (s *pipelineService) normalizeAll(raw []*models.FilterResponse, mode photometry.NormalizationMode) ([]*models.NormalizedFilterResponse, error) {
	out := make([]*models.NormalizedFilterResponse, 0, len(raw))
	for _, f := range raw {
		n, err := photometry.Normalize(f, mode)
		if err != nil {
			metrics.RecordFilterFailure(err)
			return nil, err
		}
		metrics.RecordFilterNormalized(n.Normalization)

		log.Debug().
			Str("filter", n.Name).
			Float64("central_wavelength", n.CentralWavelength).
			Float64("denominator", n.Denominator).
			Int("samples", n.Len()).
			Msg("Filter response normalized")

		out = append(out, n)
	}
	return out, nil
}

// checkpoint records progress; a failed update fails the run
func (s *pipelineService) checkpoint(ctx context.Context, runID uuid.UUID, status string, progress int) error {
	if err := s.repository.UpdateStatus(ctx, runID, status, progress); err != nil {
		return s.fail(ctx, runID, fmt.Errorf("failed to record progress %d: %w", progress, err))
	}
	return nil
}

// fail records err on the run and returns it
func (s *pipelineService) fail(ctx context.Context, runID uuid.UUID, err error) error {
	log.Error().Err(err).Str("run_id", runID.String()).Msg("Pipeline run failed")

	// The run may have been cancelled; the failure must still be recorded
	if uerr := s.repository.UpdateError(context.WithoutCancel(ctx), runID, err.Error()); uerr != nil {
		log.Error().Err(uerr).Str("run_id", runID.String()).Msg("Failed to record run error")
	}
	return err
}
