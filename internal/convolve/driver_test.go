package convolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RMahshie/sedconv/internal/photometry"
	"github.com/RMahshie/sedconv/internal/storage"
	"github.com/RMahshie/sedconv/pkg/models"
)

// MockConvolver implements Convolver for testing
type MockConvolver struct {
	mock.Mock
}

func (m *MockConvolver) Convolve(sed models.ModelSED, filter *models.NormalizedFilterResponse) (float64, error) {
	args := m.Called(sed.Name, filter.Name)
	return args.Get(0).(float64), args.Error(1)
}

// writeFamily creates <root>/<family>/seds with flat SEDs in micron/mJy
func writeFamily(t *testing.T, root, family string, fluxes map[string]float64) string {
	t.Helper()
	dir := filepath.Join(root, family)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "seds"), 0o755))
	for name, flux := range fluxes {
		content := "# wavelength_micron flux_mjy\n"
		for _, w := range []string{"0.1", "1", "10", "100"} {
			content += w + " " + strconv.FormatFloat(flux, 'g', -1, 64) + "\n"
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "seds", name+".sed"), []byte(content), 0o644))
	}
	return dir
}

func opticalFilter(t *testing.T, name string) *models.NormalizedFilterResponse {
	t.Helper()
	wav := []float64{0.4, 0.5, 0.6, 0.7}
	f := &models.FilterResponse{
		Name:              name,
		Wavelength:        wav,
		Frequency:         photometry.Frequencies(wav),
		Transmission:      []float64{0.1, 0.9, 0.8, 0.1},
		CentralWavelength: 0.55,
		CentralFrequency:  photometry.FrequencyFromWavelength(0.55),
	}
	n, err := photometry.Normalize(f, photometry.NormalizePeak)
	require.NoError(t, err)
	return n
}

func TestDriver_ConvolveFamily(t *testing.T) {
	modelRoot := t.TempDir()
	dir := writeFamily(t, modelRoot, "s-pbhmi", map[string]float64{"model_a": 3, "model_b": 7})

	outRoot := t.TempDir()
	store, err := storage.NewLocalStore(outRoot)
	require.NoError(t, err)

	driver := NewDriver(NewDirReader(), TrapezoidConvolver{}, store)
	filters := []*models.NormalizedFilterResponse{opticalFilter(t, "SDSS_g"), opticalFilter(t, "SDSS_r")}

	result, err := driver.ConvolveFamily(context.Background(), "run-1", dir, filters)
	require.NoError(t, err)

	assert.Equal(t, "s-pbhmi", result.Family)
	assert.Equal(t, 2, result.Models)
	require.Len(t, result.Fluxes, 4)
	assert.Len(t, result.Artifacts, 3)

	for _, f := range result.Fluxes {
		assert.Equal(t, "run-1", f.RunID)
		assert.Equal(t, "s-pbhmi", f.ModelFamily)
		want := map[string]float64{"model_a": 3, "model_b": 7}[f.ModelName]
		assert.InDelta(t, want, f.Flux, 1e-9)
	}

	table, err := os.ReadFile(filepath.Join(outRoot, "s-pbhmi", "convolved", "SDSS_g.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "model,flux_mjy", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "model_a,"))

	raw, err := os.ReadFile(filepath.Join(outRoot, "s-pbhmi", "manifest.yaml"))
	require.NoError(t, err)
	var man manifest
	require.NoError(t, yaml.Unmarshal(raw, &man))
	assert.Equal(t, "s-pbhmi", man.Family)
	assert.Equal(t, "run-1", man.RunID)
	assert.Equal(t, 2, man.Models)
	require.Len(t, man.Filters, 2)
	assert.Equal(t, "s-pbhmi/convolved/SDSS_r.csv", man.Filters[1].Artifact)
}

func TestDriver_ConvolveFamily_NamesFailingModel(t *testing.T) {
	dir := writeFamily(t, t.TempDir(), "sp--smi", map[string]float64{"m1": 1})
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	conv := &MockConvolver{}
	conv.On("Convolve", "m1", "GAIA_G").Return(0.0, errors.New("boom"))

	driver := NewDriver(NewDirReader(), conv, store)
	_, err = driver.ConvolveFamily(context.Background(), "run-2", dir, []*models.NormalizedFilterResponse{opticalFilter(t, "GAIA_G")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model family sp--smi")
	assert.Contains(t, err.Error(), "model m1")
	assert.Contains(t, err.Error(), "filter GAIA_G")
	conv.AssertExpectations(t)
}

func TestDriver_ConvolveFamily_FailureWritesNothing(t *testing.T) {
	dir := writeFamily(t, t.TempDir(), "s-pbsmi", map[string]float64{"m1": 1})
	outRoot := t.TempDir()
	store, err := storage.NewLocalStore(outRoot)
	require.NoError(t, err)

	conv := &MockConvolver{}
	conv.On("Convolve", "m1", "SDSS_g").Return(1.0, nil)
	conv.On("Convolve", "m1", "SDSS_r").Return(0.0, errors.New("boom"))

	driver := NewDriver(NewDirReader(), conv, store)
	filters := []*models.NormalizedFilterResponse{opticalFilter(t, "SDSS_g"), opticalFilter(t, "SDSS_r")}
	_, err = driver.ConvolveFamily(context.Background(), "run-4", dir, filters)
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(outRoot, "s-pbsmi"))
	assert.True(t, os.IsNotExist(err))
	conv.AssertExpectations(t)
}

// flakyStore fails every Put after the first okPuts
type flakyStore struct {
	*storage.LocalStore
	okPuts  int
	deleted []string
}

func (s *flakyStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if s.okPuts == 0 {
		return errors.New("bucket unavailable")
	}
	s.okPuts--
	return s.LocalStore.Put(ctx, key, contentType, data)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return s.LocalStore.Delete(ctx, key)
}

func TestDriver_ConvolveFamily_RemovesPartialArtifacts(t *testing.T) {
	dir := writeFamily(t, t.TempDir(), "s-u-hmi", map[string]float64{"m1": 2})
	outRoot := t.TempDir()
	local, err := storage.NewLocalStore(outRoot)
	require.NoError(t, err)
	store := &flakyStore{LocalStore: local, okPuts: 2}

	driver := NewDriver(NewDirReader(), TrapezoidConvolver{}, store)
	filters := []*models.NormalizedFilterResponse{opticalFilter(t, "SDSS_g"), opticalFilter(t, "SDSS_r")}
	_, err = driver.ConvolveFamily(context.Background(), "run-5", dir, filters)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model family s-u-hmi")
	assert.Contains(t, err.Error(), "bucket unavailable")

	assert.Equal(t, []string{"s-u-hmi/convolved/SDSS_g.csv", "s-u-hmi/convolved/SDSS_r.csv"}, store.deleted)
	for _, name := range []string{"SDSS_g.csv", "SDSS_r.csv"} {
		_, err := os.Stat(filepath.Join(outRoot, "s-u-hmi", "convolved", name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestDriver_ConvolveFamily_MissingDirectory(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	driver := NewDriver(NewDirReader(), TrapezoidConvolver{}, store)
	_, err = driver.ConvolveFamily(context.Background(), "run-3", filepath.Join(t.TempDir(), "s---s-i"), nil)
	assert.ErrorIs(t, err, ErrModelIO)
	assert.Contains(t, err.Error(), "s---s-i")
}

func TestDriver_ExportFilters(t *testing.T) {
	outRoot := t.TempDir()
	store, err := storage.NewLocalStore(outRoot)
	require.NoError(t, err)

	driver := NewDriver(NewDirReader(), TrapezoidConvolver{}, store)
	locations, err := driver.ExportFilters(context.Background(), []*models.NormalizedFilterResponse{opticalFilter(t, "SDSS_i")})
	require.NoError(t, err)
	require.Len(t, locations, 1)

	data, err := os.ReadFile(filepath.Join(outRoot, "filters", "SDSS_i.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, "wavelength_micron,frequency_hz,transmission,response", lines[0])
}

func TestFamilyName(t *testing.T) {
	assert.Equal(t, "s-p-hmi", FamilyName("/data/models_r17/s-p-hmi/"))
}
