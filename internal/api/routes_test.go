package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/sedconv/internal/repository/memory"
	"github.com/RMahshie/sedconv/internal/storage"
	"github.com/RMahshie/sedconv/pkg/models"
)

// stubPipeline completes every run immediately with one flux
type stubPipeline struct {
	repo *memory.RunRepository
}

func (s *stubPipeline) Run(ctx context.Context, runID uuid.UUID) error {
	if err := s.repo.StoreFluxes(ctx, []models.ConvolvedFlux{{
		ID:          uuid.New().String(),
		RunID:       runID.String(),
		ModelFamily: "s-pbhmi",
		ModelName:   "m1",
		Filter:      "GAIA_G",
		Flux:        2.5,
		CreatedAt:   time.Now(),
	}}); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, runID, models.StatusCompleted, 100)
}

func (s *stubPipeline) NormalizeFilters(ctx context.Context) ([]*models.NormalizedFilterResponse, error) {
	return []*models.NormalizedFilterResponse{{
		Name:          "GAIA_G",
		Frequency:     []float64{1, 2},
		Transmission:  []float64{1, 1},
		Response:      []float64{1, 1},
		Normalization: "peak",
	}}, nil
}

func newStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestRoutes_RunLifecycle(t *testing.T) {
	_, api := humatest.New(t)
	repo := memory.NewRunRepository()
	store := newStore(t)
	require.NoError(t, store.Put(context.Background(), "s-pbhmi/convolved/GAIA_G.csv", storage.ContentTypeCSV, []byte("model,flux_mjy\nm1,2.5\n")))
	RegisterRoutes(api, repo, &stubPipeline{repo: repo}, store, []string{models.StageNormalize, models.StageConvolve})

	resp := api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "healthy")

	resp = api.Get("/api/filters")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "GAIA_G")

	resp = api.Post("/api/runs", map[string]any{"stages": []string{"normalize", "convolve"}})
	require.Equal(t, http.StatusAccepted, resp.Code)

	var created models.CreateRunResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	require.Eventually(t, func() bool {
		r := api.Get("/api/runs/" + created.ID + "/status")
		return r.Code == http.StatusOK && strings.Contains(r.Body.String(), `"completed"`)
	}, 2*time.Second, 10*time.Millisecond)

	resp = api.Get("/api/runs/" + created.ID + "/fluxes?family=s-pbhmi")
	require.Equal(t, http.StatusOK, resp.Code)
	var fluxes models.GetRunFluxesResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fluxes))
	require.Len(t, fluxes.Fluxes, 1)
	assert.Equal(t, 2.5, fluxes.Fluxes[0].Flux)

	resp = api.Get("/api/runs?limit=10")
	require.Equal(t, http.StatusOK, resp.Code)
	var listed models.ListRunsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed.Body))
	require.Len(t, listed.Body.Runs, 1)
	assert.Equal(t, created.ID, listed.Body.Runs[0].ID)
	assert.Equal(t, models.StatusCompleted, listed.Body.Runs[0].Status)

	resp = api.Get("/api/artifacts?key=s-pbhmi/convolved/GAIA_G.csv")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, storage.ContentTypeCSV, resp.Header().Get("Content-Type"))
	assert.Equal(t, "model,flux_mjy\nm1,2.5\n", resp.Body.String())
}

func TestRoutes_Errors(t *testing.T) {
	_, api := humatest.New(t)
	repo := memory.NewRunRepository()
	RegisterRoutes(api, repo, &stubPipeline{repo: repo}, newStore(t), []string{models.StageNormalize})

	assert.Equal(t, http.StatusNotFound, api.Get("/api/runs/"+uuid.New().String()+"/status").Code)
	assert.Equal(t, http.StatusBadRequest, api.Get("/api/runs/nope/status").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Post("/api/runs", map[string]any{"stages": []string{"plot"}}).Code)
	assert.Equal(t, http.StatusBadRequest, api.Post("/api/runs", map[string]any{"stages": []string{"convolve"}}).Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/artifacts?key=s-pbhmi/manifest.yaml").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Get("/api/artifacts").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Get("/api/runs?limit=0").Code)
}
