package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/qy_analyzer_go/internal/parser"
)

// qyPair builds a synthetic sphere measurement pair over 400-429 nm with
// zero baselines everywhere: the fluorophore shows a 5-count scatter peak
// at samples 10-13 and an 8-count emission band at samples 20-23, the
// solvent shows the unattenuated 25-count scatter peak.
func qyPair(t *testing.T) (*parser.Spectrum, *parser.Spectrum) {
	t.Helper()
	wl := rampAxis(30, 400, 1)

	fluor := make([]float64, 30)
	fluorU := make([]float64, 30)
	for i := 10; i < 14; i++ {
		fluor[i] = 5
		fluorU[i] = 1
	}
	for i := 20; i < 24; i++ {
		fluor[i] = 8
		fluorU[i] = 1
	}
	solvent := make([]float64, 30)
	solventU := make([]float64, 30)
	for i := 10; i < 14; i++ {
		solvent[i] = 25
		solventU[i] = 3
	}

	f := testSpectrum(t, parser.RunEmission, wl, fluor)
	require.NoError(t, f.AttachCorrection(fluor, fluorU))
	s := testSpectrum(t, parser.RunEmission, wl, solvent)
	require.NoError(t, s.AttachCorrection(solvent, solventU))
	return f, s
}

func qyWindows() QYParams {
	return QYParams{
		ScatterLo:  410,
		ScatterHi:  414,
		EmissionLo: 420,
		EmissionHi: 424,
	}
}

func TestComputeQYHandComputed(t *testing.T) {
	fluor, solvent := qyPair(t)

	res, err := ComputeQY(fluor, solvent, qyWindows())
	require.NoError(t, err)

	assert.Equal(t, IndexWindow{Start: 10, End: 14}, res.ScatterFluor)
	assert.Equal(t, IndexWindow{Start: 10, End: 14}, res.ScatterSolvent)
	assert.Equal(t, IndexWindow{Start: 20, End: 24}, res.EmissionFluor)

	assert.InDelta(t, 32.0, res.NEmitted, 1e-12)
	assert.InDelta(t, 100.0, res.NTotEmpty, 1e-12)
	assert.InDelta(t, 20.0, res.NTotSample, 1e-12)
	assert.InDelta(t, 2.0, res.UNEmitted, 1e-12)
	assert.InDelta(t, 6.0, res.UNTotEmpty, 1e-12)
	assert.InDelta(t, 2.0, res.UNTotSample, 1e-12)

	// 32 emitted over 100-20 absorbed.
	assert.InDelta(t, 0.4, res.QYRaw, 1e-12)
	assert.Zero(t, res.Reabsorption)
	assert.Equal(t, res.QYRaw, res.QY)

	wantU := math.Sqrt(math.Pow(2.0/80, 2) + math.Pow(0.4/80, 2)*(36+4))
	assert.InDelta(t, wantU, res.UQYRaw, 1e-12)
	assert.InDelta(t, res.UQYRaw, res.UQY, 1e-15)
}

func TestComputeQYReabsorptionNoOpEquivalence(t *testing.T) {
	fluor, solvent := qyPair(t)
	base, err := ComputeQY(fluor, solvent, qyWindows())
	require.NoError(t, err)

	// A dilute reference without a normalization wavelength must change
	// nothing, and vice versa.
	dilute, _ := qyPair(t)
	p := qyWindows()
	p.Dilute = dilute
	withDilute, err := ComputeQY(fluor, solvent, p)
	require.NoError(t, err)
	assert.Equal(t, base.QY, withDilute.QY)
	assert.Equal(t, base.UQY, withDilute.UQY)

	p = qyWindows()
	p.NormWavelength = 423
	withNorm, err := ComputeQY(fluor, solvent, p)
	require.NoError(t, err)
	assert.Equal(t, base.QY, withNorm.QY)
	assert.Equal(t, base.UQY, withNorm.UQY)
}

func TestComputeQYWithReabsorptionWeight(t *testing.T) {
	fluor, solvent := qyPair(t)

	// Dilute emission band 24,16,16,16 normalized at 423 nm integrates to
	// 4.5 against the sphere's 4, giving w = 1 - 4/4.5 = 1/9 and
	// QY = 0.4/(1 - 1/9 + 0.4/9) = 3/7.
	wl := rampAxis(30, 400, 1)
	diluteVals := make([]float64, 30)
	copy(diluteVals[20:24], []float64{24, 16, 16, 16})
	dilute := testSpectrum(t, parser.RunEmission, wl, diluteVals)
	require.NoError(t, dilute.AttachCorrection(diluteVals, make([]float64, 30)))

	p := qyWindows()
	p.Dilute = dilute
	p.NormWavelength = 423

	res, err := ComputeQY(fluor, solvent, p)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/9, res.Reabsorption, 1e-12)
	assert.InDelta(t, 0.4, res.QYRaw, 1e-12)
	assert.InDelta(t, 3.0/7, res.QY, 1e-12)
	assert.Greater(t, res.UQY, 0.0)
	assert.False(t, math.IsNaN(res.UQY))
}

func TestComputeQYDegenerateDenominator(t *testing.T) {
	wl := rampAxis(30, 400, 1)
	vals := make([]float64, 30)
	for i := 10; i < 14; i++ {
		vals[i] = 5
	}
	for i := 20; i < 24; i++ {
		vals[i] = 8
	}
	fluor := testSpectrum(t, parser.RunEmission, wl, vals)
	require.NoError(t, fluor.AttachCorrection(vals, make([]float64, 30)))

	// Solvent scatter identical to the sample scatter: nothing absorbed.
	twin := testSpectrum(t, parser.RunEmission, wl, vals)
	require.NoError(t, twin.AttachCorrection(vals, make([]float64, 30)))

	res, err := ComputeQY(fluor, twin, qyWindows())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegenerateQY)
	assert.Nil(t, res)
}

func TestComputeQYRequiresCorrectedInputs(t *testing.T) {
	fluor, solvent := qyPair(t)
	wl := rampAxis(30, 400, 1)
	raw := testSpectrum(t, parser.RunEmission, wl, make([]float64, 30))

	_, err := ComputeQY(raw, solvent, qyWindows())
	assert.ErrorIs(t, err, ErrUncorrectedInput)

	_, err = ComputeQY(fluor, raw, qyWindows())
	assert.ErrorIs(t, err, ErrUncorrectedInput)

	p := qyWindows()
	p.Dilute = raw
	p.NormWavelength = 423
	_, err = ComputeQY(fluor, solvent, p)
	assert.ErrorIs(t, err, ErrUncorrectedInput)
}

func TestComputeQYSolventEmissionBaseline(t *testing.T) {
	fluor, _ := qyPair(t)

	// Solvent with a 1-count pedestal under the emission band. Used as the
	// emission baseline it shaves one count per sample off the emitted sum.
	wl := rampAxis(30, 400, 1)
	vals := make([]float64, 30)
	valsU := make([]float64, 30)
	for i := 10; i < 14; i++ {
		vals[i] = 25
		valsU[i] = 3
	}
	for i := 20; i < 24; i++ {
		vals[i] = 1
	}
	solvent := testSpectrum(t, parser.RunEmission, wl, vals)
	require.NoError(t, solvent.AttachCorrection(vals, valsU))

	p := qyWindows()
	p.UseSolventBaseline = true
	res, err := ComputeQY(fluor, solvent, p)
	require.NoError(t, err)
	assert.InDelta(t, 28.0, res.NEmitted, 1e-12)
	assert.InDelta(t, 0.35, res.QYRaw, 1e-12)

	// The substituted baseline must span the fluorophore axis.
	shortWl := rampAxis(29, 400, 1)
	shortVals := make([]float64, 29)
	for i := 10; i < 14; i++ {
		shortVals[i] = 25
	}
	short := testSpectrum(t, parser.RunEmission, shortWl, shortVals)
	require.NoError(t, short.AttachCorrection(shortVals, make([]float64, 29)))
	_, err = ComputeQY(fluor, short, p)
	assert.ErrorContains(t, err, "matching axes")
}

func TestComputeQYBaselineRangePropagates(t *testing.T) {
	fluor, solvent := qyPair(t)

	p := qyWindows()
	p.ScatterLo = 400
	_, err := ComputeQY(fluor, solvent, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBaselineRange)
	assert.ErrorContains(t, err, "scatter baseline")
}

func TestComputeQYCustomWindowLength(t *testing.T) {
	fluor, solvent := qyPair(t)

	p := qyWindows()
	p.WindowLength = 2
	res, err := ComputeQY(fluor, solvent, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.QYRaw, 1e-12)
}
