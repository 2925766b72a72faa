package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/sedconv/pkg/models"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// RunRepository defines the interface for pipeline run operations
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error)
	List(ctx context.Context, limit int) ([]*models.Run, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	StoreFluxes(ctx context.Context, fluxes []models.ConvolvedFlux) error
	GetFluxes(ctx context.Context, runID uuid.UUID, family string) ([]models.ConvolvedFlux, error)
}
