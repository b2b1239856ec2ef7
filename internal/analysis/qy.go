package analysis

import (
	"fmt"
	"math"

	"github.com/user/qy_analyzer_go/internal/parser"
)

// ComputeQY calculates the fluorescence quantum yield from an integrating
// sphere measurement pair. The fluorophore spectrum carries both the
// scattering peak and the emission band; the solvent spectrum provides the
// unattenuated scattering peak. Both must already carry corrected
// intensities. Emitted and absorbed counts are integrated over half-open
// sample windows resolved from the wavelength bounds in p, each above a
// locally fitted linear baseline.
func ComputeQY(fluor, solvent *parser.Spectrum, p QYParams) (*QYResult, error) {
	if fluor == nil || solvent == nil {
		return nil, fmt.Errorf("quantum yield needs a fluorophore and a solvent spectrum")
	}
	if !fluor.IsCorrected() {
		return nil, fmt.Errorf("%w: fluorophore %s", ErrUncorrectedInput, fluor.SourcePath)
	}
	if !solvent.IsCorrected() {
		return nil, fmt.Errorf("%w: solvent %s", ErrUncorrectedInput, solvent.SourcePath)
	}
	window := p.WindowLength
	if window == 0 {
		window = DefaultBaselineWindow
	}

	res := &QYResult{
		ScatterFluor: IndexWindow{
			Start: fluor.NearestIndex(p.ScatterLo),
			End:   fluor.NearestIndex(p.ScatterHi),
		},
		ScatterSolvent: IndexWindow{
			Start: solvent.NearestIndex(p.ScatterLo),
			End:   solvent.NearestIndex(p.ScatterHi),
		},
		EmissionFluor: IndexWindow{
			Start: fluor.NearestIndex(p.EmissionLo),
			End:   fluor.NearestIndex(p.EmissionHi),
		},
	}

	var err error
	res.ScatterBaselineFluor, err = FitLocalBaseline(fluor.Wavelengths, fluor.CorrectedIntensity,
		res.ScatterFluor.Start, res.ScatterFluor.End, window)
	if err != nil {
		return nil, fmt.Errorf("fluorophore scatter baseline: %w", err)
	}
	res.ScatterBaselineSolvent, err = FitLocalBaseline(solvent.Wavelengths, solvent.CorrectedIntensity,
		res.ScatterSolvent.Start, res.ScatterSolvent.End, window)
	if err != nil {
		return nil, fmt.Errorf("solvent scatter baseline: %w", err)
	}

	if p.UseSolventBaseline {
		if solvent.Samples() != fluor.Samples() {
			return nil, fmt.Errorf("solvent baseline needs matching axes, got %d and %d samples",
				solvent.Samples(), fluor.Samples())
		}
		res.EmissionBaseline = solvent.CorrectedIntensity
	} else {
		res.EmissionBaseline, err = FitLocalBaseline(fluor.Wavelengths, fluor.CorrectedIntensity,
			res.EmissionFluor.Start, res.EmissionFluor.End, window)
		if err != nil {
			return nil, fmt.Errorf("emission baseline: %w", err)
		}
	}

	res.NEmitted, res.UNEmitted = windowNet(fluor.CorrectedIntensity,
		res.EmissionBaseline, fluor.CorrectedUncertainty, res.EmissionFluor)
	res.NTotEmpty, res.UNTotEmpty = windowNet(solvent.CorrectedIntensity,
		res.ScatterBaselineSolvent, solvent.CorrectedUncertainty, res.ScatterSolvent)
	res.NTotSample, res.UNTotSample = windowNet(fluor.CorrectedIntensity,
		res.ScatterBaselineFluor, fluor.CorrectedUncertainty, res.ScatterFluor)

	absorbed := res.NTotEmpty - res.NTotSample
	if absorbed == 0 {
		return nil, fmt.Errorf("%w: absorbed counts cancel (empty %.6g, sample %.6g)",
			ErrDegenerateQY, res.NTotEmpty, res.NTotSample)
	}
	res.QYRaw = res.NEmitted / absorbed
	res.UQYRaw = math.Sqrt(sq(res.UNEmitted/absorbed) +
		sq(res.QYRaw/absorbed)*(sq(res.UNTotEmpty)+sq(res.UNTotSample)))

	res.Reabsorption, res.UReabsorption, err = EstimateReabsorption(fluor,
		p.EmissionLo, p.EmissionHi, p.NormWavelength, res.EmissionBaseline, p.Dilute)
	if err != nil {
		return nil, fmt.Errorf("reabsorption estimate: %w", err)
	}

	weighting := 1 - res.Reabsorption + res.Reabsorption*res.QYRaw
	if weighting == 0 {
		return nil, fmt.Errorf("%w: reabsorption weighting denominator is zero (w %.6g)",
			ErrDegenerateQY, res.Reabsorption)
	}
	res.QY = res.QYRaw / weighting
	// The final-to-raw ratio equals 1/weighting, which stays finite even
	// when the raw yield itself is zero.
	res.UQY = math.Sqrt(sq(res.UQYRaw/weighting) +
		sq((1-res.QYRaw)*res.QY/weighting)*sq(res.UReabsorption))

	return res, nil
}

// windowNet integrates intensity minus baseline over a half-open window and
// returns the net sum with its root-sum-square uncertainty.
func windowNet(intensity, baseline, uncertainty []float64, win IndexWindow) (float64, float64) {
	var sum, variance float64
	for i := win.Start; i < win.End; i++ {
		sum += intensity[i] - baseline[i]
		variance += uncertainty[i] * uncertainty[i]
	}
	return sum, math.Sqrt(variance)
}

func sq(x float64) float64 { return x * x }
