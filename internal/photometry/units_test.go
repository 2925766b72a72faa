package photometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyFromWavelength(t *testing.T) {
	assert.InDelta(t, 2.99792458e14, FrequencyFromWavelength(1), 1)
	assert.InDelta(t, 1.0, WavelengthFromFrequency(2.99792458e14), 1e-12)
}

func TestFrequenciesKeepIndexOrder(t *testing.T) {
	nu := Frequencies([]float64{0.5, 1, 2})
	require.Len(t, nu, 3)
	assert.Greater(t, nu[0], nu[1])
	assert.Greater(t, nu[1], nu[2])
}

func TestMicronScale(t *testing.T) {
	tests := []struct {
		unit    string
		want    float64
		wantErr bool
	}{
		{unit: "", want: 1},
		{unit: "micron", want: 1},
		{unit: "Angstrom", want: 1e-4},
		{unit: "nm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, err := MicronScale(tt.unit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
