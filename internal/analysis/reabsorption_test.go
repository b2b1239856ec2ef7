package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/qy_analyzer_go/internal/parser"
)

// correctedSpectrum attaches the given corrected intensities with zero
// uncertainty, the minimum a reabsorption estimate needs.
func correctedSpectrum(t *testing.T, wl, corrected []float64) *parser.Spectrum {
	t.Helper()
	spec := testSpectrum(t, parser.RunEmission, wl, corrected)
	require.NoError(t, spec.AttachCorrection(corrected, make([]float64, len(corrected))))
	return spec
}

func TestReabsorptionDisabledWithoutInputs(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	sphere := correctedSpectrum(t, wl, []float64{2, 4, 8, 3})
	dilute := correctedSpectrum(t, wl, []float64{8, 8, 16, 5})
	baseline := make([]float64, 4)

	w, uw, err := EstimateReabsorption(sphere, 500, 530, 520, baseline, nil)
	require.NoError(t, err)
	assert.Zero(t, w)
	assert.Zero(t, uw)

	w, uw, err = EstimateReabsorption(sphere, 500, 530, 0, baseline, dilute)
	require.NoError(t, err)
	assert.Zero(t, w)
	assert.Zero(t, uw)
}

func TestReabsorptionHandComputed(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	sphere := correctedSpectrum(t, wl, []float64{2, 4, 8, 3})
	dilute := correctedSpectrum(t, wl, []float64{8, 8, 16, 5})
	baseline := make([]float64, 4)

	// Window [500, 530) covers the first three samples; both spectra
	// normalize at 520 nm. integSphere = 2/8+4/8+8/8 = 1.75,
	// integDilute = 8/16+8/16+16/16 = 2, so w = 1 - 1.75/2 = 0.125.
	w, uw, err := EstimateReabsorption(sphere, 500, 530, 520, baseline, dilute)
	require.NoError(t, err)
	assert.InDelta(t, 0.125, w, 1e-12)

	// Term-as-own-uncertainty sums: Us² = 0.25²+0.5²+1² = 1.3125,
	// Ud² = 0.5²+0.5²+1² = 1.5.
	wantVar := 1.3125/4.0 + (1.75*1.75)*1.5/16.0
	assert.InDelta(t, wantVar, uw*uw, 1e-12)
}

func TestReabsorptionSubtractsEmissionBaseline(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	sphere := correctedSpectrum(t, wl, []float64{3, 5, 9, 4})
	dilute := correctedSpectrum(t, wl, []float64{8, 8, 16, 5})
	baseline := []float64{1, 1, 1, 1}

	// After baseline subtraction the sphere values match the hand-computed
	// case above.
	w, _, err := EstimateReabsorption(sphere, 500, 530, 520, baseline, dilute)
	require.NoError(t, err)
	assert.InDelta(t, 0.125, w, 1e-12)
}

func TestReabsorptionDegenerateNormalization(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	baseline := make([]float64, 4)

	deadSphere := correctedSpectrum(t, wl, []float64{2, 4, 0, 3})
	dilute := correctedSpectrum(t, wl, []float64{8, 8, 16, 5})
	_, _, err := EstimateReabsorption(deadSphere, 500, 530, 520, baseline, dilute)
	assert.ErrorIs(t, err, ErrDegenerateQY)

	sphere := correctedSpectrum(t, wl, []float64{2, 4, 8, 3})
	deadDilute := correctedSpectrum(t, wl, []float64{8, 8, 0, 5})
	_, _, err = EstimateReabsorption(sphere, 500, 530, 520, baseline, deadDilute)
	assert.ErrorIs(t, err, ErrDegenerateQY)

	// Window terms cancel to a zero dilute integral.
	cancelled := correctedSpectrum(t, wl, []float64{8, -8, 16, 5})
	_, _, err = EstimateReabsorption(sphere, 500, 520, 520, baseline, cancelled)
	assert.ErrorIs(t, err, ErrDegenerateQY)
}

func TestReabsorptionRequiresCorrectedSpectra(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	baseline := make([]float64, 4)
	dilute := correctedSpectrum(t, wl, []float64{8, 8, 16, 5})

	rawSphere := testSpectrum(t, parser.RunEmission, wl, []float64{2, 4, 8, 3})
	_, _, err := EstimateReabsorption(rawSphere, 500, 530, 520, baseline, dilute)
	assert.ErrorIs(t, err, ErrUncorrectedInput)

	sphere := correctedSpectrum(t, wl, []float64{2, 4, 8, 3})
	rawDilute := testSpectrum(t, parser.RunEmission, wl, []float64{8, 8, 16, 5})
	_, _, err = EstimateReabsorption(sphere, 500, 530, 520, baseline, rawDilute)
	assert.ErrorIs(t, err, ErrUncorrectedInput)
}

func TestReabsorptionBaselineLengthMismatch(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	sphere := correctedSpectrum(t, wl, []float64{2, 4, 8, 3})
	dilute := correctedSpectrum(t, wl, []float64{8, 8, 16, 5})

	_, _, err := EstimateReabsorption(sphere, 500, 530, 520, make([]float64, 3), dilute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDegenerateQY)
}

func TestReabsorptionVanishesForIdenticalShapes(t *testing.T) {
	wl := []float64{500, 510, 520, 530}
	sphere := correctedSpectrum(t, wl, []float64{2, 4, 8, 3})
	scaled := correctedSpectrum(t, wl, []float64{6, 12, 24, 9})
	baseline := make([]float64, 4)

	// A dilute reference that is just a scaled copy normalizes to the same
	// shape, so no reabsorption is detected.
	w, _, err := EstimateReabsorption(sphere, 500, 530, 520, baseline, scaled)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, w, 1e-12)
}
