package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/RMahshie/sedconv/internal/repository"
	"github.com/RMahshie/sedconv/pkg/models"
)

// setupDatabase starts PostgreSQL, applies the schema and returns a handle
func setupDatabase(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := pgContainer.Run(ctx,
		"postgres:15-alpine",
		pgContainer.WithDatabase("sedconv_test"),
		pgContainer.WithUsername("testuser"),
		pgContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	// Applying twice must be harmless.
	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestPostgresRunRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupDatabase(t)
	repo := NewPostgresRunRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	run := &models.Run{
		ID:        uuid.New().String(),
		Status:    models.StatusPending,
		Stages:    []string{models.StageNormalize, models.StageConvolve},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, run))
	id := uuid.MustParse(run.ID)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.Stages, got.Stages)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.ErrorMsg)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusCompleted, 100))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.CompletedAt)

	fluxes := []models.ConvolvedFlux{
		{ID: uuid.New().String(), RunID: run.ID, ModelFamily: "s-pbhmi", ModelName: "0001", Filter: "SDSS_r", Flux: 1.5, CreatedAt: now},
		{ID: uuid.New().String(), RunID: run.ID, ModelFamily: "s-pbhmi", ModelName: "0001", Filter: "GAIA_G", Flux: 2.5, CreatedAt: now},
		{ID: uuid.New().String(), RunID: run.ID, ModelFamily: "sp--hmi", ModelName: "0002", Filter: "SDSS_r", Flux: 3.5, CreatedAt: now},
	}
	require.NoError(t, repo.StoreFluxes(ctx, fluxes))

	all, err := repo.GetFluxes(ctx, id, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "GAIA_G", all[0].Filter)

	family, err := repo.GetFluxes(ctx, id, "sp--hmi")
	require.NoError(t, err)
	require.Len(t, family, 1)
	assert.InDelta(t, 3.5, family[0].Flux, 1e-12)

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestPostgresRunRepository_FailureAndMissing_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupDatabase(t)
	repo := NewPostgresRunRepository(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrRunNotFound)

	now := time.Now().UTC()
	run := &models.Run{ID: uuid.New().String(), Status: models.StatusProcessing, Stages: []string{models.StageNormalize}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, run))
	id := uuid.MustParse(run.ID)

	require.NoError(t, repo.UpdateError(ctx, id, "filter SDSS_u: degenerate filter"))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMsg)
	assert.Contains(t, *got.ErrorMsg, "SDSS_u")

	assert.NoError(t, repo.StoreFluxes(ctx, nil))
}
