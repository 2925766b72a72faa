// Package memory provides an in-process RunRepository used when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/pkg/models"
)

// RunRepository keeps runs and fluxes in memory
type RunRepository struct {
	mu     sync.RWMutex
	runs   map[string]*models.Run
	fluxes map[string][]models.ConvolvedFlux
}

// NewRunRepository creates an empty in-memory run repository
func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs:   make(map[string]*models.Run),
		fluxes: make(map[string][]models.ConvolvedFlux),
	}
}

var _ repository.RunRepository = (*RunRepository)(nil)

func copyRun(run *models.Run) *models.Run {
	c := *run
	c.Stages = slices.Clone(run.Stages)
	if run.ErrorMsg != nil {
		msg := *run.ErrorMsg
		c.ErrorMsg = &msg
	}
	if run.CompletedAt != nil {
		at := *run.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// Create stores a copy of run
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	r.runs[run.ID] = copyRun(run)
	return nil
}

// GetByID returns a copy of the stored run
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
	}
	return copyRun(run), nil
}

// List returns the most recent runs first
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*models.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, copyRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// UpdateStatus updates the status and progress of a run
func (r *RunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id.String()]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
	}
	now := time.Now()
	run.Status = status
	run.Progress = progress
	run.UpdatedAt = now
	if status == models.StatusCompleted {
		run.CompletedAt = &now
	}
	return nil
}

// UpdateError marks a run as failed
func (r *RunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id.String()]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
	}
	run.Status = models.StatusFailed
	run.ErrorMsg = &errorMsg
	run.UpdatedAt = time.Now()
	return nil
}

// StoreFluxes appends fluxes to their runs
func (r *RunRepository) StoreFluxes(ctx context.Context, fluxes []models.ConvolvedFlux) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range fluxes {
		if _, ok := r.runs[f.RunID]; !ok {
			return fmt.Errorf("%w: %s", repository.ErrRunNotFound, f.RunID)
		}
	}
	for _, f := range fluxes {
		r.fluxes[f.RunID] = append(r.fluxes[f.RunID], f)
	}
	return nil
}

// GetFluxes returns the fluxes of a run ordered by family, filter and model
func (r *RunRepository) GetFluxes(ctx context.Context, runID uuid.UUID, family string) ([]models.ConvolvedFlux, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ConvolvedFlux
	for _, f := range r.fluxes[runID.String()] {
		if family == "" || f.ModelFamily == family {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ModelFamily != b.ModelFamily {
			return a.ModelFamily < b.ModelFamily
		}
		if a.Filter != b.Filter {
			return a.Filter < b.Filter
		}
		return a.ModelName < b.ModelName
	})
	return out, nil
}
