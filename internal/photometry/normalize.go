// Package photometry converts raw filter transmission curves into
// energy-counting response functions.
//
// Filters calibrated against a reference spectrum with ν·Fν = const quote a
// flux density
//
//	Fν(quoted) = ∫ Fν (ν0/ν) T(ν) dν / ∫ (ν0/ν)² T(ν) dν
//
// so the response used for convolution is
//
//	R(ν) = T(ν) (ν0/ν) / ∫ (ν0/ν)² T(ν) dν
//
// followed by a peak or area normalization.
package photometry

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/RMahshie/sedconv/pkg/models"
)

// NormalizationMode selects the post-normalization convention.
type NormalizationMode string

const (
	// NormalizePeak scales the response so its maximum is 1.
	NormalizePeak NormalizationMode = "peak"
	// NormalizeArea scales the response so ∫R dν is 1.
	NormalizeArea NormalizationMode = "area"
)

// degenerateTolerance bounds the denominator relative to max|integrand|·Δν.
const degenerateTolerance = 1e-12

// ParseNormalizationMode parses a mode name. An empty name means peak.
func ParseNormalizationMode(s string) (NormalizationMode, error) {
	switch NormalizationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NormalizePeak:
		return NormalizePeak, nil
	case NormalizeArea:
		return NormalizeArea, nil
	default:
		return "", fmt.Errorf("unknown normalization mode %q", s)
	}
}

// Normalize derives the energy-counting response of f. The input is not
// modified; the returned record owns fresh slices ordered by increasing
// frequency. Failures are returned as *FilterError.
func Normalize(f *models.FilterResponse, mode NormalizationMode) (*models.NormalizedFilterResponse, error) {
	if f == nil {
		return nil, fmt.Errorf("nil filter response: %w", ErrInsufficientSamples)
	}

	wrap := func(err error) error {
		return &FilterError{Filter: f.Name, Err: err}
	}

	wav, freq, trans, err := OrientIncreasing(f.Wavelength, f.Frequency, f.Transmission)
	if err != nil {
		return nil, wrap(err)
	}

	response, denom, err := EnergyCountingResponse(freq, trans, f.CentralFrequency)
	if err != nil {
		return nil, wrap(err)
	}

	if err := PostNormalize(response, freq, mode); err != nil {
		return nil, wrap(err)
	}

	if !allFinite(response) {
		return nil, wrap(fmt.Errorf("%w: non-finite response", ErrDegenerateFilter))
	}

	return &models.NormalizedFilterResponse{
		Name:              f.Name,
		Wavelength:        wav,
		Frequency:         freq,
		Transmission:      trans,
		Response:          response,
		CentralWavelength: f.CentralWavelength,
		CentralFrequency:  f.CentralFrequency,
		Denominator:       denom,
		Normalization:     string(mode),
	}, nil
}

// OrientIncreasing returns copies of the three aligned arrays ordered by
// increasing frequency. A decreasing grid is reversed together with its
// wavelengths and transmission. wav may be nil.
func OrientIncreasing(wav, freq, trans []float64) ([]float64, []float64, []float64, error) {
	if len(freq) < 2 {
		return nil, nil, nil, fmt.Errorf("%w: %d frequency samples", ErrInsufficientSamples, len(freq))
	}
	if len(trans) != len(freq) || (wav != nil && len(wav) != len(freq)) {
		return nil, nil, nil, fmt.Errorf("%w: wavelength=%d frequency=%d transmission=%d",
			ErrMismatchedLength, len(wav), len(freq), len(trans))
	}

	w := slices.Clone(wav)
	nu := slices.Clone(freq)
	t := slices.Clone(trans)

	if nu[0] > nu[len(nu)-1] {
		slices.Reverse(w)
		slices.Reverse(nu)
		slices.Reverse(t)
	}

	if !allFinite(nu) || nu[0] <= 0 || !strictlyIncreasing(nu) {
		return nil, nil, nil, ErrUnsortedGrid
	}

	return w, nu, t, nil
}

// EnergyCountingResponse computes R = T·(ν0/ν) / ∫T·(ν0/ν)² dν on a strictly
// increasing grid and returns R together with the denominator.
func EnergyCountingResponse(freq, trans []float64, centralFrequency float64) ([]float64, float64, error) {
	n := len(freq)
	if n < 2 {
		return nil, 0, fmt.Errorf("%w: %d frequency samples", ErrInsufficientSamples, n)
	}
	if len(trans) != n {
		return nil, 0, fmt.Errorf("%w: frequency=%d transmission=%d", ErrMismatchedLength, n, len(trans))
	}
	if !strictlyIncreasing(freq) || !allFinite(freq) {
		return nil, 0, ErrUnsortedGrid
	}
	if !isFinite(centralFrequency) || centralFrequency <= 0 {
		return nil, 0, fmt.Errorf("%w: central frequency %g", ErrDegenerateFilter, centralFrequency)
	}

	ratio := make([]float64, n)
	for i, nu := range freq {
		ratio[i] = centralFrequency / nu
	}

	weight := make([]float64, n)
	vecmath.MulBlock(weight, ratio, ratio)

	integrand := make([]float64, n)
	vecmath.MulBlock(integrand, trans, weight)

	denom := integrate.Trapezoidal(freq, integrand)

	scale := maxAbs(integrand) * (freq[n-1] - freq[0])
	if !isFinite(denom) || !isFinite(scale) || scale == 0 || denom <= degenerateTolerance*scale {
		return nil, denom, fmt.Errorf("%w: denominator %g", ErrDegenerateFilter, denom)
	}

	response := make([]float64, n)
	vecmath.MulBlock(response, trans, ratio)
	floats.Scale(1/denom, response)

	return response, denom, nil
}

// PostNormalize rescales response in place so that its peak (NormalizePeak)
// or its integral over freq (NormalizeArea) equals 1.
func PostNormalize(response, freq []float64, mode NormalizationMode) error {
	if len(response) < 2 {
		return fmt.Errorf("%w: %d response samples", ErrInsufficientSamples, len(response))
	}

	var stat float64
	switch mode {
	case NormalizePeak, "":
		stat = floats.Max(response)
	case NormalizeArea:
		if len(freq) != len(response) {
			return fmt.Errorf("%w: frequency=%d response=%d", ErrMismatchedLength, len(freq), len(response))
		}
		if !strictlyIncreasing(freq) {
			return ErrUnsortedGrid
		}
		stat = integrate.Trapezoidal(freq, response)
	default:
		return fmt.Errorf("unknown normalization mode %q", mode)
	}

	if !isFinite(stat) || stat <= 0 {
		return fmt.Errorf("%w: %s statistic %g", ErrDegenerateFilter, mode, stat)
	}

	floats.Scale(1/stat, response)
	return nil
}

// Summarize reports the shape of a normalized filter
func Summarize(n *models.NormalizedFilterResponse) models.FilterSummary {
	s := models.FilterSummary{
		Name:              n.Name,
		Samples:           n.Len(),
		CentralWavelength: n.CentralWavelength,
		CentralFrequency:  n.CentralFrequency,
		Denominator:       n.Denominator,
		Normalization:     n.Normalization,
	}
	if len(n.Frequency) > 0 {
		s.MinFrequency = n.Frequency[0]
		s.MaxFrequency = n.Frequency[len(n.Frequency)-1]
	}
	if len(n.Response) > 0 && len(n.Response) == len(n.Frequency) {
		s.PeakFrequency = n.Frequency[floats.MaxIdx(n.Response)]
	}
	return s
}

func maxAbs(s []float64) float64 {
	m := 0.0
	for _, v := range s {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
