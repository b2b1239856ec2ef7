package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/user/qy_analyzer_go/internal/parser"
)

// EstimateReabsorption compares the normalized emission integral of the
// sphere measurement against a dilute reference, where reabsorption is
// negligible, and returns the reabsorption weight w with its uncertainty.
// The emission window [emLo, emHi) and the normalization wavelength resolve
// to the nearest sample on each spectrum's own axis. A nil dilute spectrum
// or a zero normalization wavelength disables the correction and yields
// (0, 0).
//
// The per-term uncertainty of the normalized integrals uses each normalized
// value as its own proxy, which overestimates near the peak. Kept for
// numerical compatibility with earlier analyses of the same instrument.
func EstimateReabsorption(sphere *parser.Spectrum, emLo, emHi, normWavelength float64, emissionBaseline []float64, dilute *parser.Spectrum) (float64, float64, error) {
	if dilute == nil || normWavelength == 0 {
		return 0, 0, nil
	}
	if !sphere.IsCorrected() {
		return 0, 0, fmt.Errorf("%w: sphere measurement %s", ErrUncorrectedInput, sphere.SourcePath)
	}
	if !dilute.IsCorrected() {
		return 0, 0, fmt.Errorf("%w: dilute reference %s", ErrUncorrectedInput, dilute.SourcePath)
	}
	if len(emissionBaseline) != sphere.Samples() {
		return 0, 0, fmt.Errorf("emission baseline has %d values for %d wavelengths",
			len(emissionBaseline), sphere.Samples())
	}

	sub := make([]float64, sphere.Samples())
	floats.SubTo(sub, sphere.CorrectedIntensity, emissionBaseline)

	sphereWin := IndexWindow{Start: sphere.NearestIndex(emLo), End: sphere.NearestIndex(emHi)}
	diluteWin := IndexWindow{Start: dilute.NearestIndex(emLo), End: dilute.NearestIndex(emHi)}

	sphereNorm := sub[sphere.NearestIndex(normWavelength)]
	if sphereNorm == 0 {
		return 0, 0, fmt.Errorf("%w: sphere emission is zero at the %.2f nm normalization point",
			ErrDegenerateQY, normWavelength)
	}
	diluteNorm := dilute.CorrectedIntensity[dilute.NearestIndex(normWavelength)]
	if diluteNorm == 0 {
		return 0, 0, fmt.Errorf("%w: dilute emission is zero at the %.2f nm normalization point",
			ErrDegenerateQY, normWavelength)
	}

	integSphere, uSphere := normalizedIntegral(sub, sphereNorm, sphereWin)
	integDilute, uDilute := normalizedIntegral(dilute.CorrectedIntensity, diluteNorm, diluteWin)
	if integDilute == 0 {
		return 0, 0, fmt.Errorf("%w: dilute emission integral is zero", ErrDegenerateQY)
	}

	w := 1 - integSphere/integDilute
	a := uSphere / integDilute
	b := integSphere * uDilute / (integDilute * integDilute)
	return w, math.Sqrt(a*a + b*b), nil
}

// normalizedIntegral sums values[i]/norm over the window and returns the sum
// with the root-sum-square of the normalized terms.
func normalizedIntegral(values []float64, norm float64, win IndexWindow) (float64, float64) {
	var sum, variance float64
	for i := win.Start; i < win.End; i++ {
		t := values[i] / norm
		sum += t
		variance += t * t
	}
	return sum, math.Sqrt(variance)
}
