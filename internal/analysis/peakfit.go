package analysis

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"
)

// FitEmissionPeak fits a Gaussian with a constant offset to the emission
// window and reports the peak position and width. Intensities should be the
// corrected spectrum; the fit tolerates the residual baseline through the
// offset term.
func FitEmissionPeak(wavelengths, intensities []float64, win IndexWindow) (*PeakFit, error) {
	if win.Start < 0 || win.End > len(wavelengths) || len(wavelengths) != len(intensities) {
		return nil, fmt.Errorf("peak window [%d, %d) outside %d samples", win.Start, win.End, len(wavelengths))
	}
	m := win.Width()
	if m < 5 {
		return nil, fmt.Errorf("peak window holds %d samples, need at least 5", m)
	}
	wl := wavelengths[win.Start:win.End]
	in := intensities[win.Start:win.End]

	// Starting guess: tallest sample for amplitude and center, a quarter of
	// the window for the width, the window minimum for the offset.
	top := floats.MaxIdx(in)
	offset := floats.Min(in)
	guess := []float64{in[top] - offset, wl[top], (wl[m-1] - wl[0]) / 4, offset}

	f := func(dst, p []float64) {
		amp, cen, sig, off := p[0], p[1], p[2], p[3]
		for i, x := range wl {
			dst[i] = amp*math.Exp(-(x-cen)*(x-cen)/(2*sig*sig)) + off - in[i]
		}
	}
	jacobian := lm.NumJac{Func: f}

	toBeSolved := lm.LMProblem{
		Dim:        4,
		Size:       m,
		Func:       f,
		Jac:        jacobian.Jac,
		InitParams: guess,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	results, err := lm.LM(toBeSolved, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, fmt.Errorf("emission peak fit: %w", err)
	}

	sigma := math.Abs(results.X[2])
	return &PeakFit{
		Amplitude: results.X[0],
		Center:    results.X[1],
		Sigma:     sigma,
		Offset:    results.X[3],
		FWHM:      2 * math.Sqrt(2*math.Ln2) * sigma,
	}, nil
}
