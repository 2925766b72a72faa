package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/sedconv/internal/api/handlers"
	"github.com/RMahshie/sedconv/internal/processing"
	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/internal/storage"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, runRepo repository.RunRepository, pipelineSvc processing.PipelineService, store storage.ArtifactStore, defaultStages []string) {
	runHandler := handlers.NewRunHandler(runRepo, pipelineSvc, defaultStages)
	artifactHandler := handlers.NewArtifactHandler(store)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, handlers.Health)

	huma.Register(api, huma.Operation{
		OperationID: "listFilters",
		Method:      http.MethodGet,
		Path:        "/api/filters",
		Summary:     "List filters",
		Description: "Loads and normalizes the configured filter set and returns a summary of each response function",
		Tags:        []string{"Filters"},
	}, runHandler.ListFilters)

	huma.Register(api, huma.Operation{
		OperationID:   "createRun",
		Method:        http.MethodPost,
		Path:          "/api/runs",
		Summary:       "Start a pipeline run",
		Description:   "Creates a run record and starts the selected stages in the background",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusAccepted,
	}, runHandler.CreateRun)

	huma.Register(api, huma.Operation{
		OperationID: "listRuns",
		Method:      http.MethodGet,
		Path:        "/api/runs",
		Summary:     "List runs",
		Description: "Returns the most recent runs, newest first",
		Tags:        []string{"Runs"},
	}, runHandler.ListRuns)

	huma.Register(api, huma.Operation{
		OperationID: "getRunStatus",
		Method:      http.MethodGet,
		Path:        "/api/runs/{id}/status",
		Summary:     "Get run status",
		Description: "Returns the current status and progress of a run",
		Tags:        []string{"Runs"},
	}, runHandler.GetRunStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getRunFluxes",
		Method:      http.MethodGet,
		Path:        "/api/runs/{id}/fluxes",
		Summary:     "Get convolved fluxes",
		Description: "Returns the convolved fluxes of a completed run, optionally for one model family",
		Tags:        []string{"Runs"},
	}, runHandler.GetRunFluxes)

	huma.Register(api, huma.Operation{
		OperationID: "getArtifact",
		Method:      http.MethodGet,
		Path:        "/api/artifacts",
		Summary:     "Download an artifact",
		Description: "Returns a convolved flux table, family manifest or exported filter response by key",
		Tags:        []string{"Artifacts"},
	}, artifactHandler.GetArtifact)
}
