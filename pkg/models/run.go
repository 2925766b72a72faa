package models

import (
	"time"
)

// Run statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Pipeline stages
const (
	StageNormalize = "normalize"
	StageExport    = "export"
	StageConvolve  = "convolve"
)

// Run represents one pipeline execution (for internal use)
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Stages      []string   `json:"stages"`
	ErrorMsg    *string    `json:"error_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasStage reports whether the run includes the named stage
func (r *Run) HasStage(stage string) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// ConvolvedFlux is the flux of one model seen through one filter
type ConvolvedFlux struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	ModelFamily string    `json:"model_family" doc:"Model family directory name"`
	ModelName   string    `json:"model_name" doc:"Model identifier"`
	Filter      string    `json:"filter" doc:"Filter label"`
	Flux        float64   `json:"flux" doc:"Convolved flux density in mJy"`
	CreatedAt   time.Time `json:"created_at"`
}
