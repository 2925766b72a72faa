package convolve

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"

	"github.com/RMahshie/sedconv/internal/photometry"
	"github.com/RMahshie/sedconv/pkg/models"
)

// ErrOutsideModelRange is returned when a filter's passband is not covered
// by a model's frequency grid.
var ErrOutsideModelRange = errors.New("filter outside model range")

// Convolver integrates one model SED against one normalized filter
type Convolver interface {
	Convolve(sed models.ModelSED, filter *models.NormalizedFilterResponse) (float64, error)
}

// TrapezoidConvolver interpolates the SED linearly onto the filter grid and
// returns
//
//	F = ∫ Fν R dν / ∫ R dν
//
// so the result does not depend on whether R was peak- or area-normalized.
type TrapezoidConvolver struct{}

// Convolve returns the flux density of sed seen through filter, in the
// SED's flux unit.
func (TrapezoidConvolver) Convolve(sed models.ModelSED, filter *models.NormalizedFilterResponse) (float64, error) {
	if filter == nil {
		return 0, fmt.Errorf("%w: no filter response", photometry.ErrInsufficientSamples)
	}
	if filter.Len() < 2 || len(filter.Frequency) != filter.Len() {
		return 0, &photometry.FilterError{
			Filter: filter.Name,
			Err:    fmt.Errorf("%w: %d response samples on %d frequencies", photometry.ErrInsufficientSamples, filter.Len(), len(filter.Frequency)),
		}
	}

	lo, hi, ok := passband(filter.Response)
	if !ok {
		return 0, fmt.Errorf("filter %s has no positive response", filter.Name)
	}
	n := len(sed.Frequency)
	if n < 2 || filter.Frequency[lo] < sed.Frequency[0] || filter.Frequency[hi] > sed.Frequency[n-1] {
		return 0, fmt.Errorf("%w: %s spans %.4g-%.4g Hz", ErrOutsideModelRange, filter.Name, filter.Frequency[lo], filter.Frequency[hi])
	}

	if len(sed.Flux) != n || !increasing(sed.Frequency) {
		return 0, fmt.Errorf("model %s: frequency grid must be strictly increasing and aligned with flux", sed.Name)
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(sed.Frequency, sed.Flux); err != nil {
		return 0, fmt.Errorf("model %s: %w", sed.Name, err)
	}

	weighted := make([]float64, filter.Len())
	for i, nu := range filter.Frequency {
		weighted[i] = pl.Predict(nu) * filter.Response[i]
	}

	num := integrate.Trapezoidal(filter.Frequency, weighted)
	den := integrate.Trapezoidal(filter.Frequency, filter.Response)
	if den <= 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0, fmt.Errorf("filter %s: response integral %g", filter.Name, den)
	}

	return num / den, nil
}

// passband returns the first and last indices with positive response
func passband(response []float64) (int, int, bool) {
	lo, hi := -1, -1
	for i, v := range response {
		if v > 0 {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return lo, hi, lo >= 0
}

func increasing(s []float64) bool {
	for i := 1; i < len(s); i++ {
		if !(s[i] > s[i-1]) {
			return false
		}
	}
	return true
}
