package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// ListFiltersResponse lists the configured filters after normalization
type ListFiltersResponse struct {
	Body struct {
		Filters []FilterSummary `json:"filters" doc:"Normalized filters in configuration order"`
	}
}

// CreateRunRequestBody is the body of the create run request
type CreateRunRequestBody struct {
	Stages []string `json:"stages,omitempty" enum:"normalize,export,convolve" doc:"Stages to run; defaults to the configured stages"`
}

// CreateRunRequest represents a request to start a pipeline run
type CreateRunRequest struct {
	Body CreateRunRequestBody
}

// CreateRunResponseBody is the body of the create run response
type CreateRunResponseBody struct {
	ID     string   `json:"id" doc:"Run unique identifier"`
	Status string   `json:"status" doc:"Initial run status"`
	Stages []string `json:"stages" doc:"Stages selected for the run"`
}

// CreateRunResponse represents the response from starting a run
type CreateRunResponse struct {
	Body CreateRunResponseBody
}

// GetRunStatusRequest represents a request to get run status
type GetRunStatusRequest struct {
	ID string `path:"id" doc:"Run ID"`
}

// GetRunStatusResponseBody is the body of the status response
type GetRunStatusResponseBody struct {
	ID       string   `json:"id" doc:"Run ID"`
	Status   string   `json:"status" enum:"pending,processing,completed,failed" doc:"Run status"`
	Progress int      `json:"progress" minimum:"0" maximum:"100" doc:"Run progress percentage"`
	Stages   []string `json:"stages" doc:"Stages selected for the run"`
	Message  string   `json:"message,omitempty" doc:"Human-readable status message"`
	Error    *string  `json:"error,omitempty" doc:"Failure reason naming the offending filter or model family"`
}

// GetRunStatusResponse represents the current status of a run
type GetRunStatusResponse struct {
	Body GetRunStatusResponseBody
}

// GetRunFluxesRequest represents a request to get convolved fluxes
type GetRunFluxesRequest struct {
	ID     string `path:"id" doc:"Run ID"`
	Family string `query:"family" doc:"Restrict results to one model family"`
}

// GetRunFluxesResponseBody is the body of the fluxes response
type GetRunFluxesResponseBody struct {
	ID     string          `json:"id" doc:"Run ID"`
	Fluxes []ConvolvedFlux `json:"fluxes" doc:"Convolved fluxes"`
}

// GetRunFluxesResponse represents the convolved fluxes of a completed run
type GetRunFluxesResponse struct {
	Body GetRunFluxesResponseBody
}

// ListRunsRequest represents a request to list recent runs
type ListRunsRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum number of runs to return"`
}

// RunSummary describes one run in a listing
type RunSummary struct {
	ID          string     `json:"id" doc:"Run ID"`
	Status      string     `json:"status" enum:"pending,processing,completed,failed" doc:"Run status"`
	Progress    int        `json:"progress" minimum:"0" maximum:"100" doc:"Run progress percentage"`
	Stages      []string   `json:"stages" doc:"Stages selected for the run"`
	Error       *string    `json:"error,omitempty" doc:"Failure reason"`
	CreatedAt   time.Time  `json:"created_at" doc:"When the run was created"`
	CompletedAt *time.Time `json:"completed_at,omitempty" doc:"When the run completed"`
}

// ListRunsResponse lists recent runs, newest first
type ListRunsResponse struct {
	Body struct {
		Runs []RunSummary `json:"runs" doc:"Runs, newest first"`
	}
}

// GetArtifactRequest represents a request to download a pipeline artifact
type GetArtifactRequest struct {
	Key string `query:"key" required:"true" example:"s-pbhmi/convolved/GAIA_G.csv" doc:"Artifact key below the output root"`
}

// GetArtifactResponse carries the raw artifact content
type GetArtifactResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
