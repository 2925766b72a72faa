package convolve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RMahshie/sedconv/internal/photometry"
	"github.com/RMahshie/sedconv/pkg/models"
)

// ErrModelIO is returned when a model family directory or SED file cannot be read.
var ErrModelIO = errors.New("model SEDs unreadable")

// modelExtensions lists the file extensions treated as SED tables
var modelExtensions = map[string]bool{
	".sed": true,
	".dat": true,
	".txt": true,
	".csv": true,
}

// ModelReader reads the SEDs of one model family
type ModelReader interface {
	ReadFamily(ctx context.Context, dir string) ([]models.ModelSED, error)
}

// DirReader reads SED tables from <dir>/seds, or from dir itself when it has
// no seds subdirectory. Each table holds wavelength (micron) and flux (mJy)
// columns; '#' lines are comments.
type DirReader struct{}

// NewDirReader creates a filesystem model reader
func NewDirReader() *DirReader {
	return &DirReader{}
}

// ReadFamily reads every SED table of the family in file name order
func (r *DirReader) ReadFamily(ctx context.Context, dir string) ([]models.ModelSED, error) {
	sedDir := filepath.Join(dir, "seds")
	if info, err := os.Stat(sedDir); err != nil || !info.IsDir() {
		sedDir = dir
	}

	entries, err := os.ReadDir(sedDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelIO, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !modelExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no SED files in %s", ErrModelIO, sedDir)
	}

	seds := make([]models.ModelSED, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sed, err := readSEDFile(filepath.Join(sedDir, name))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		seds = append(seds, sed)
	}

	return seds, nil
}

func readSEDFile(path string) (models.ModelSED, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.ModelSED{}, fmt.Errorf("%w: %v", ErrModelIO, err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseSED(name, file)
}

// ParseSED reads a two-column SED table and returns it on an increasing
// frequency grid, with flux reordered together with the grid.
func ParseSED(name string, r io.Reader) (models.ModelSED, error) {
	var wav, flux []float64

	lineNo := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) < 2 {
			return models.ModelSED{}, fmt.Errorf("%w: line %d: expected wavelength and flux", ErrModelIO, lineNo)
		}

		w, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return models.ModelSED{}, fmt.Errorf("%w: line %d: %v", ErrModelIO, lineNo, err)
		}
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return models.ModelSED{}, fmt.Errorf("%w: line %d: %v", ErrModelIO, lineNo, err)
		}
		if !(w > 0) {
			return models.ModelSED{}, fmt.Errorf("%w: line %d: wavelength must be positive", ErrModelIO, lineNo)
		}

		wav = append(wav, w)
		flux = append(flux, f)
	}
	if err := scanner.Err(); err != nil {
		return models.ModelSED{}, fmt.Errorf("%w: %v", ErrModelIO, err)
	}

	_, freq, fluxUp, err := photometry.OrientIncreasing(nil, photometry.Frequencies(wav), flux)
	if err != nil {
		return models.ModelSED{}, fmt.Errorf("%w: %v", ErrModelIO, err)
	}

	return models.ModelSED{
		Name:      name,
		Frequency: freq,
		Flux:      fluxUp,
	}, nil
}
