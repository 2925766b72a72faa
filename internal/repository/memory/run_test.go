package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/pkg/models"
)

func newRun(created time.Time) *models.Run {
	return &models.Run{
		ID:        uuid.New().String(),
		Status:    models.StatusPending,
		Stages:    []string{models.StageNormalize, models.StageConvolve},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	run := newRun(time.Now())
	require.NoError(t, repo.Create(ctx, run))
	id := uuid.MustParse(run.ID)

	// Mutating the caller's copy must not leak into the store.
	run.Stages[0] = "mutated"

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StageNormalize, got.Stages[0])
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusProcessing, 40))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Equal(t, 40, got.Progress)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusCompleted, 100))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)
}

func TestRunRepository_UpdateError(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	run := newRun(time.Now())
	require.NoError(t, repo.Create(ctx, run))
	id := uuid.MustParse(run.ID)

	require.NoError(t, repo.UpdateError(ctx, id, "filter SDSS_u: degenerate filter"))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMsg)
	assert.Equal(t, "filter SDSS_u: degenerate filter", *got.ErrorMsg)
}

func TestRunRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	id := uuid.New()

	_, err := repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, id, models.StatusProcessing, 10), repository.ErrRunNotFound)
	assert.ErrorIs(t, repo.UpdateError(ctx, id, "x"), repository.ErrRunNotFound)
	assert.ErrorIs(t, repo.StoreFluxes(ctx, []models.ConvolvedFlux{{RunID: id.String()}}), repository.ErrRunNotFound)
}

func TestRunRepository_DuplicateCreate(t *testing.T) {
	repo := NewRunRepository()
	run := newRun(time.Now())
	require.NoError(t, repo.Create(context.Background(), run))
	assert.Error(t, repo.Create(context.Background(), run))
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	base := time.Now()
	older := newRun(base.Add(-time.Hour))
	newer := newRun(base)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	runs, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)

	runs, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunRepository_Fluxes(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	run := newRun(time.Now())
	require.NoError(t, repo.Create(ctx, run))
	id := uuid.MustParse(run.ID)

	fluxes := []models.ConvolvedFlux{
		{RunID: run.ID, ModelFamily: "sp--hmi", ModelName: "b", Filter: "SDSS_r", Flux: 2},
		{RunID: run.ID, ModelFamily: "s-pbhmi", ModelName: "a", Filter: "SDSS_r", Flux: 1},
		{RunID: run.ID, ModelFamily: "s-pbhmi", ModelName: "a", Filter: "GAIA_G", Flux: 3},
	}
	require.NoError(t, repo.StoreFluxes(ctx, fluxes))

	all, err := repo.GetFluxes(ctx, id, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "GAIA_G", all[0].Filter)
	assert.Equal(t, "sp--hmi", all[2].ModelFamily)

	one, err := repo.GetFluxes(ctx, id, "sp--hmi")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 2.0, one[0].Flux)

	none, err := repo.GetFluxes(ctx, uuid.New(), "")
	require.NoError(t, err)
	assert.Empty(t, none)
}
