package photometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/RMahshie/sedconv/pkg/models"
)

// SpeedOfLight in m/s.
const SpeedOfLight = 299792458.0

const (
	micronToMeter    = 1e-6
	angstromToMicron = 1e-4
)

// FrequencyFromWavelength converts a wavelength in micron to a frequency in Hz.
func FrequencyFromWavelength(micron float64) float64 {
	return SpeedOfLight / (micron * micronToMeter)
}

// WavelengthFromFrequency converts a frequency in Hz to a wavelength in micron.
func WavelengthFromFrequency(hz float64) float64 {
	return SpeedOfLight / hz / micronToMeter
}

// Frequencies converts a wavelength grid in micron to frequencies in Hz,
// preserving index order. Increasing wavelength yields decreasing frequency.
func Frequencies(micron []float64) []float64 {
	out := make([]float64, len(micron))
	for i, w := range micron {
		out[i] = FrequencyFromWavelength(w)
	}
	return out
}

// MicronScale returns the factor that converts the named unit to micron.
// An empty unit means micron.
func MicronScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", models.UnitMicron, "um":
		return 1, nil
	case models.UnitAngstrom, "a":
		return angstromToMicron, nil
	default:
		return 0, fmt.Errorf("unknown wavelength unit %q", unit)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(s []float64) bool {
	for _, v := range s {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func strictlyIncreasing(s []float64) bool {
	for i := 1; i < len(s); i++ {
		if !(s[i] > s[i-1]) {
			return false
		}
	}
	return true
}
