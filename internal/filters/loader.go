package filters

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sedconv/internal/photometry"
	"github.com/RMahshie/sedconv/pkg/models"
)

var (
	// ErrFilterIO is returned when a filter table is missing or unreadable.
	ErrFilterIO = errors.New("filter table unreadable")
	// ErrMalformedTable is returned for tables that do not parse.
	ErrMalformedTable = errors.New("malformed filter table")
)

// FilterLoader reads raw transmission curves
type FilterLoader interface {
	Load(ctx context.Context, spec models.FilterSpec) (*models.FilterResponse, error)
}

// Loader reads filter tables from the local filesystem.
//
// A table starts with a "# wav = <central wavelength>" line followed by
// whitespace- or comma-separated wavelength/transmission pairs. Other lines
// starting with '#' and blank lines are ignored.
type Loader struct {
	baseDir string
}

// NewLoader creates a loader resolving relative table paths against baseDir
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load reads the table named by spec and labels it with spec.Label
func (l *Loader) Load(ctx context.Context, spec models.FilterSpec) (*models.FilterResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := l.resolve(spec.Path)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w: %v", spec.Label, ErrFilterIO, err)
	}
	defer file.Close()

	resp, err := Parse(file, spec.WavelengthUnit)
	if err != nil {
		return nil, fmt.Errorf("filter %s (%s): %w", spec.Label, path, err)
	}
	resp.Name = spec.Label

	log.Debug().
		Str("filter", spec.Label).
		Str("path", path).
		Int("samples", resp.Len()).
		Float64("central_wavelength", resp.CentralWavelength).
		Msg("Filter table loaded")

	return resp, nil
}

// LoadAll loads every spec in order and stops at the first failure
func LoadAll(ctx context.Context, loader FilterLoader, specs []models.FilterSpec) ([]*models.FilterResponse, error) {
	out := make([]*models.FilterResponse, 0, len(specs))
	for _, spec := range specs {
		f, err := loader.Load(ctx, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Parse reads a filter table. Wavelengths are converted from unit to micron
// and frequencies are derived from them; sample order is preserved.
func Parse(r io.Reader, unit string) (*models.FilterResponse, error) {
	scale, err := photometry.MicronScale(unit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}

	resp := &models.FilterResponse{}
	haveCentral := false
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if haveCentral {
				continue
			}
			v, ok, err := parseCentralWavelength(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, lineNo, err)
			}
			if ok {
				resp.CentralWavelength = v * scale
				haveCentral = true
			}
			continue
		}

		fields := splitFields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d: expected wavelength and transmission", ErrMalformedTable, lineNo)
		}
		wav, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, lineNo, err)
		}
		trans, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, lineNo, err)
		}
		if !(wav > 0) {
			return nil, fmt.Errorf("%w: line %d: wavelength must be positive, got %g", ErrMalformedTable, lineNo, wav)
		}

		resp.Wavelength = append(resp.Wavelength, wav*scale)
		resp.Transmission = append(resp.Transmission, trans)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilterIO, err)
	}

	if !haveCentral {
		return nil, fmt.Errorf("%w: missing \"# wav = ...\" header", ErrMalformedTable)
	}
	if !(resp.CentralWavelength > 0) {
		return nil, fmt.Errorf("%w: central wavelength must be positive, got %g", ErrMalformedTable, resp.CentralWavelength)
	}

	resp.Frequency = photometry.Frequencies(resp.Wavelength)
	resp.CentralFrequency = photometry.FrequencyFromWavelength(resp.CentralWavelength)

	return resp, nil
}

// parseCentralWavelength recognizes "# wav = 0.673" comment lines
func parseCentralWavelength(line string) (float64, bool, error) {
	body := strings.TrimSpace(strings.TrimLeft(line, "#"))
	key, value, found := strings.Cut(body, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(key), "wav") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false, fmt.Errorf("central wavelength: %v", err)
	}
	return v, true, nil
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.baseDir == "" {
		return path
	}
	return filepath.Join(l.baseDir, path)
}
