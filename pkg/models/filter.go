package models

// Wavelength units accepted in filter tables
const (
	UnitMicron   = "micron"
	UnitAngstrom = "angstrom"
)

// FilterSpec selects one filter table for a run
type FilterSpec struct {
	Path           string `mapstructure:"path" yaml:"path" json:"path" validate:"required"`
	Label          string `mapstructure:"label" yaml:"label" json:"label" validate:"required"`
	WavelengthUnit string `mapstructure:"wavelength_unit" yaml:"wavelength_unit,omitempty" json:"wavelength_unit,omitempty" validate:"omitempty,oneof=micron angstrom"`
}

// FilterResponse is a raw transmission curve as read from a filter table.
// Wavelength is in micron and Frequency in Hz; both are index-aligned with
// Transmission and keep the order of the source file.
type FilterResponse struct {
	Name              string
	Wavelength        []float64
	Frequency         []float64
	Transmission      []float64
	CentralWavelength float64
	CentralFrequency  float64
}

// Len returns the number of samples in the curve
func (f *FilterResponse) Len() int {
	return len(f.Transmission)
}

// NormalizedFilterResponse is the energy-counting response function derived
// from a FilterResponse. Frequency is strictly increasing and every slice is
// index-aligned with it.
type NormalizedFilterResponse struct {
	Name              string
	Wavelength        []float64
	Frequency         []float64
	Transmission      []float64
	Response          []float64
	CentralWavelength float64
	CentralFrequency  float64
	Denominator       float64
	Normalization     string
}

// Len returns the number of samples in the curve
func (n *NormalizedFilterResponse) Len() int {
	return len(n.Response)
}

// FilterSummary describes a normalized filter for listings and logs
type FilterSummary struct {
	Name              string  `json:"name" doc:"Filter label"`
	Samples           int     `json:"samples" doc:"Number of samples in the response curve"`
	CentralWavelength float64 `json:"central_wavelength" doc:"Central wavelength in micron"`
	CentralFrequency  float64 `json:"central_frequency" doc:"Central frequency in Hz"`
	MinFrequency      float64 `json:"min_frequency" doc:"Lowest sampled frequency in Hz"`
	MaxFrequency      float64 `json:"max_frequency" doc:"Highest sampled frequency in Hz"`
	PeakFrequency     float64 `json:"peak_frequency" doc:"Frequency of the response peak in Hz"`
	Denominator       float64 `json:"denominator" doc:"Energy-counting normalization integral"`
	Normalization     string  `json:"normalization" enum:"peak,area" doc:"Post-normalization convention"`
}

// ModelSED is one model spectrum with flux in mJy on an increasing frequency grid
type ModelSED struct {
	Name      string
	Frequency []float64
	Flux      []float64
}
