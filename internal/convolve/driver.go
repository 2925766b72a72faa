package convolve

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/RMahshie/sedconv/internal/storage"
	"github.com/RMahshie/sedconv/pkg/models"
)

// FamilyResult summarizes the convolution of one model family
type FamilyResult struct {
	Family    string
	Models    int
	Fluxes    []models.ConvolvedFlux
	Artifacts []string
}

// manifest is written next to the convolved flux tables of a family
type manifest struct {
	Family    string           `yaml:"family"`
	RunID     string           `yaml:"run_id"`
	Source    string           `yaml:"source"`
	Models    int              `yaml:"models"`
	CreatedAt time.Time        `yaml:"created_at"`
	Filters   []manifestFilter `yaml:"filters"`
}

type manifestFilter struct {
	Name              string  `yaml:"name"`
	Artifact          string  `yaml:"artifact"`
	CentralWavelength float64 `yaml:"central_wavelength_micron"`
	Samples           int     `yaml:"samples"`
	Normalization     string  `yaml:"normalization"`
}

// Driver convolves model families against normalized filters and writes
// the results to an artifact store
type Driver struct {
	reader    ModelReader
	convolver Convolver
	store     storage.ArtifactStore
}

// NewDriver creates a convolution driver
func NewDriver(reader ModelReader, convolver Convolver, store storage.ArtifactStore) *Driver {
	return &Driver{
		reader:    reader,
		convolver: convolver,
		store:     store,
	}
}

// FamilyName returns the family label of a model directory
func FamilyName(dir string) string {
	return filepath.Base(filepath.Clean(dir))
}

// ConvolveFamily convolves every model in dir with every filter and writes
// <family>/convolved/<filter>.csv plus <family>/manifest.yaml. Nothing is
// written until every model has been convolved, and artifacts already
// written are removed again if a later write fails.
func (d *Driver) ConvolveFamily(ctx context.Context, runID, dir string, filters []*models.NormalizedFilterResponse) (*FamilyResult, error) {
	family := FamilyName(dir)

	seds, err := d.reader.ReadFamily(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("model family %s: %w", family, err)
	}

	now := time.Now()
	result := &FamilyResult{Family: family, Models: len(seds)}
	man := manifest{
		Family:    family,
		RunID:     runID,
		Source:    dir,
		Models:    len(seds),
		CreatedAt: now,
	}

	tables := make([][]byte, 0, len(filters))
	for _, f := range filters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"model", "flux_mjy"}); err != nil {
			return nil, fmt.Errorf("model family %s: %w", family, err)
		}

		for _, sed := range seds {
			flux, err := d.convolver.Convolve(sed, f)
			if err != nil {
				return nil, fmt.Errorf("model family %s: model %s: filter %s: %w", family, sed.Name, f.Name, err)
			}

			if err := w.Write([]string{sed.Name, strconv.FormatFloat(flux, 'g', -1, 64)}); err != nil {
				return nil, fmt.Errorf("model family %s: %w", family, err)
			}

			result.Fluxes = append(result.Fluxes, models.ConvolvedFlux{
				ID:          uuid.New().String(),
				RunID:       runID,
				ModelFamily: family,
				ModelName:   sed.Name,
				Filter:      f.Name,
				Flux:        flux,
				CreatedAt:   now,
			})
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("model family %s: %w", family, err)
		}
		tables = append(tables, buf.Bytes())

		man.Filters = append(man.Filters, manifestFilter{
			Name:              f.Name,
			Artifact:          family + "/convolved/" + f.Name + ".csv",
			CentralWavelength: f.CentralWavelength,
			Samples:           f.Len(),
			Normalization:     f.Normalization,
		})
	}

	data, err := yaml.Marshal(&man)
	if err != nil {
		return nil, fmt.Errorf("model family %s: failed to encode manifest: %w", family, err)
	}

	var written []string
	put := func(key, contentType string, body []byte) error {
		if err := d.store.Put(ctx, key, contentType, body); err != nil {
			d.discard(ctx, family, written)
			return fmt.Errorf("model family %s: %w", family, err)
		}
		written = append(written, key)
		result.Artifacts = append(result.Artifacts, d.store.Location(key))
		return nil
	}

	for i, mf := range man.Filters {
		if err := put(mf.Artifact, storage.ContentTypeCSV, tables[i]); err != nil {
			return nil, err
		}
	}
	if err := put(family+"/manifest.yaml", storage.ContentTypeYAML, data); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", runID).
		Str("family", family).
		Int("models", len(seds)).
		Int("filters", len(filters)).
		Msg("Model family convolved")

	return result, nil
}

// discard removes artifacts written by a family that did not complete
func (d *Driver) discard(ctx context.Context, family string, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := d.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("family", family).Str("key", key).Msg("Failed to remove partial artifact")
		}
	}
}

// ExportFilters writes filters/<name>.csv with the raw transmission and
// normalized response of each filter.
func (d *Driver) ExportFilters(ctx context.Context, filters []*models.NormalizedFilterResponse) ([]string, error) {
	var locations []string
	for _, f := range filters {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"wavelength_micron", "frequency_hz", "transmission", "response"}); err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name, err)
		}
		for i := range f.Response {
			wav := ""
			if i < len(f.Wavelength) {
				wav = strconv.FormatFloat(f.Wavelength[i], 'g', -1, 64)
			}
			row := []string{
				wav,
				strconv.FormatFloat(f.Frequency[i], 'g', -1, 64),
				strconv.FormatFloat(f.Transmission[i], 'g', -1, 64),
				strconv.FormatFloat(f.Response[i], 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("filter %s: %w", f.Name, err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name, err)
		}

		key := "filters/" + f.Name + ".csv"
		if err := d.store.Put(ctx, key, storage.ContentTypeCSV, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name, err)
		}
		locations = append(locations, d.store.Location(key))
	}
	return locations, nil
}
