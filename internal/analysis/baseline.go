package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultBaselineWindow is the number of samples averaged on each side of an
// integration window when fitting a local baseline. Kept even so the
// half-window offset in the slope denominator divides exactly.
const DefaultBaselineWindow = 4

// FitLocalBaseline fits a straight line through the average signal levels
// found just outside the half-open window [startIndex, endIndex) and
// evaluates it at every wavelength. The slope runs from the mean of the
// windowLength samples below startIndex to the mean of the windowLength
// samples from endIndex up, over the wavelength span between the two
// half-window midpoints.
func FitLocalBaseline(wavelengths, intensities []float64, startIndex, endIndex, windowLength int) ([]float64, error) {
	n := len(wavelengths)
	if len(intensities) != n {
		return nil, fmt.Errorf("%d intensities for %d wavelengths", len(intensities), n)
	}
	if windowLength < 1 {
		return nil, fmt.Errorf("%w: averaging window %d", ErrBaselineRange, windowLength)
	}
	if startIndex > endIndex {
		return nil, fmt.Errorf("%w: start index %d beyond end index %d", ErrBaselineRange, startIndex, endIndex)
	}
	if startIndex-windowLength < 0 || endIndex+windowLength >= n {
		return nil, fmt.Errorf("%w: [%d, %d) with window %d on %d samples",
			ErrBaselineRange, startIndex, endIndex, windowLength, n)
	}

	upper := stat.Mean(intensities[endIndex:endIndex+windowLength], nil)
	lower := stat.Mean(intensities[startIndex-windowLength:startIndex], nil)
	gradient := (upper - lower) /
		(wavelengths[endIndex+windowLength/2] - wavelengths[startIndex-windowLength/2])
	intercept := upper - gradient*wavelengths[endIndex]

	line := make([]float64, n)
	for i, wl := range wavelengths {
		line[i] = gradient*wl + intercept
	}
	return line, nil
}
