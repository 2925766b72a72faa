package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sedconv/internal/config"
	"github.com/RMahshie/sedconv/internal/photometry"
	"github.com/RMahshie/sedconv/internal/processing"
	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/pkg/models"
)

// RunHandler handles pipeline run HTTP requests
type RunHandler struct {
	repo          repository.RunRepository
	pipelineSvc   processing.PipelineService
	defaultStages []string
}

// NewRunHandler creates a new run handler. Runs created without explicit
// stages use defaultStages.
func NewRunHandler(repo repository.RunRepository, pipelineSvc processing.PipelineService, defaultStages []string) *RunHandler {
	return &RunHandler{
		repo:          repo,
		pipelineSvc:   pipelineSvc,
		defaultStages: defaultStages,
	}
}

// ListFilters normalizes the configured filter set and summarizes it
func (h *RunHandler) ListFilters(ctx context.Context, input *struct{}) (*models.ListFiltersResponse, error) {
	normalized, err := h.pipelineSvc.NormalizeFilters(ctx)
	if err != nil {
		var ferr *photometry.FilterError
		if errors.As(err, &ferr) {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("Filter %s could not be normalized", ferr.Filter), err)
		}
		return nil, huma.Error500InternalServerError("Failed to load filters", err)
	}

	resp := &models.ListFiltersResponse{}
	resp.Body.Filters = make([]models.FilterSummary, 0, len(normalized))
	for _, n := range normalized {
		resp.Body.Filters = append(resp.Body.Filters, photometry.Summarize(n))
	}
	return resp, nil
}

// CreateRun records a run and starts it in the background
func (h *RunHandler) CreateRun(ctx context.Context, req *models.CreateRunRequest) (*models.CreateRunResponse, error) {
	stages := req.Body.Stages
	if len(stages) == 0 {
		stages = slices.Clone(h.defaultStages)
	}
	if err := config.ValidateStages(stages); err != nil {
		return nil, huma.Error400BadRequest("Invalid stage selection", err)
	}

	runID := uuid.New()
	now := time.Now()
	run := &models.Run{
		ID:        runID.String(),
		Status:    models.StatusPending,
		Progress:  0,
		Stages:    stages,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(ctx, run); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create run", err)
	}
	log.Info().Str("run_id", run.ID).Strs("stages", stages).Msg("Run created")

	// Start processing in background (don't wait for completion)
	go func() {
		if err := h.pipelineSvc.Run(context.Background(), runID); err != nil {
			log.Warn().Err(err).Str("run_id", runID.String()).Msg("Background run ended with error")
		}
	}()

	return &models.CreateRunResponse{
		Body: models.CreateRunResponseBody{
			ID:     run.ID,
			Status: run.Status,
			Stages: stages,
		},
	}, nil
}

// ListRuns returns the most recent runs, newest first
func (h *RunHandler) ListRuns(ctx context.Context, req *models.ListRunsRequest) (*models.ListRunsResponse, error) {
	runs, err := h.repo.List(ctx, req.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list runs", err)
	}

	resp := &models.ListRunsResponse{}
	resp.Body.Runs = make([]models.RunSummary, 0, len(runs))
	for _, run := range runs {
		resp.Body.Runs = append(resp.Body.Runs, models.RunSummary{
			ID:          run.ID,
			Status:      run.Status,
			Progress:    run.Progress,
			Stages:      run.Stages,
			Error:       run.ErrorMsg,
			CreatedAt:   run.CreatedAt,
			CompletedAt: run.CompletedAt,
		})
	}
	return resp, nil
}

// GetRunStatus returns the current status of a run
func (h *RunHandler) GetRunStatus(ctx context.Context, req *models.GetRunStatusRequest) (*models.GetRunStatusResponse, error) {
	run, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	return &models.GetRunStatusResponse{
		Body: models.GetRunStatusResponseBody{
			ID:       run.ID,
			Status:   run.Status,
			Progress: run.Progress,
			Stages:   run.Stages,
			Message:  statusMessage(run.Status, run.Progress),
			Error:    run.ErrorMsg,
		},
	}, nil
}

// GetRunFluxes returns the convolved fluxes of a completed run
func (h *RunHandler) GetRunFluxes(ctx context.Context, req *models.GetRunFluxesRequest) (*models.GetRunFluxesResponse, error) {
	run, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if run.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Run not yet completed",
			fmt.Errorf("run status is %s", run.Status))
	}

	fluxes, err := h.repo.GetFluxes(ctx, uuid.MustParse(run.ID), req.Family)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get fluxes", err)
	}
	if fluxes == nil {
		fluxes = []models.ConvolvedFlux{}
	}

	return &models.GetRunFluxesResponse{
		Body: models.GetRunFluxesResponseBody{
			ID:     run.ID,
			Fluxes: fluxes,
		},
	}, nil
}

// lookup parses id and loads the run, mapping failures to HTTP errors
func (h *RunHandler) lookup(ctx context.Context, id string) (*models.Run, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid run ID", err)
	}

	run, err := h.repo.GetByID(ctx, runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, huma.Error404NotFound("Run not found", err)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get run", err)
	}
	return run, nil
}

// statusMessage creates a human-readable status message
func statusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Run queued for processing..."
	case models.StatusProcessing:
		if progress < 20 {
			return "Loading filter tables..."
		} else if progress < 40 {
			return "Building response functions..."
		} else if progress < 50 {
			return "Exporting filter responses..."
		} else {
			return "Convolving model families..."
		}
	case models.StatusCompleted:
		return "Run complete!"
	case models.StatusFailed:
		return "Run failed."
	default:
		return "Unknown status"
	}
}
