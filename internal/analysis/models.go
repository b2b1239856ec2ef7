package analysis

import "github.com/user/qy_analyzer_go/internal/parser"

// CorrectionKey names one of the instrument response calibrations exported
// by the spectrometer software.
type CorrectionKey string

const (
	CorrNone         CorrectionKey = "default"              // background subtraction only, no curve
	CorrEmission     CorrectionKey = "emcorri"              // emission monochromator calibration
	CorrSphere       CorrectionKey = "emcorr-sphere"        // emission calibration inside the integrating sphere
	CorrSphereQuanta CorrectionKey = "emcorr-sphere-quanta" // sphere calibration in quanta rather than power
	CorrExcitation   CorrectionKey = "excorr"               // excitation monochromator calibration
)

// Known reports whether k is one of the recognized correction keys.
func (k CorrectionKey) Known() bool {
	switch k {
	case CorrNone, CorrEmission, CorrSphere, CorrSphereQuanta, CorrExcitation:
		return true
	default:
		return false
	}
}

// KnownCorrectionKeys lists every recognized key, CorrNone first.
func KnownCorrectionKeys() []CorrectionKey {
	return []CorrectionKey{CorrNone, CorrEmission, CorrSphere, CorrSphereQuanta, CorrExcitation}
}

// CorrectionOptions bundles the optional inputs of Corrector.Apply.
type CorrectionOptions struct {
	Background []float64        // per-sample background counts, nil means zero
	Extra      *parser.Spectrum // synchronous reference scan divided out after the curve
	Scale      float64          // multiplies intensity and uncertainty, zero means no scaling
}

// Correction is the corrected view produced by Corrector.Apply. The caller
// decides whether to attach it back onto the source record.
type Correction struct {
	Intensity   []float64
	Uncertainty []float64
}

// IndexWindow is a half-open sample range [Start, End) on a wavelength axis.
type IndexWindow struct {
	Start int
	End   int
}

// Width returns the number of samples covered by the window.
func (w IndexWindow) Width() int { return w.End - w.Start }

// QYParams configures ComputeQY. Window bounds are wavelengths in nm,
// resolved to the nearest sample on each spectrum's own axis.
type QYParams struct {
	ScatterLo  float64 // scattering (excitation) peak window
	ScatterHi  float64
	EmissionLo float64 // emission peak window
	EmissionHi float64

	// UseSolventBaseline substitutes the solvent's corrected spectrum for
	// the fitted emission baseline.
	UseSolventBaseline bool

	// Dilute is the dilute-sample reference for the reabsorption weight.
	// Nil disables the reabsorption correction.
	Dilute *parser.Spectrum
	// NormWavelength normalizes the reabsorption integrals. Zero disables
	// the reabsorption correction.
	NormWavelength float64

	// WindowLength is the averaging window of the local baselines. Zero
	// selects DefaultBaselineWindow.
	WindowLength int
}

// QYResult holds the quantum yield, its uncertainty and every intermediate
// quantity the report prints.
type QYResult struct {
	QY  float64 // reabsorption-weighted quantum yield
	UQY float64

	QYRaw  float64 // before reabsorption weighting
	UQYRaw float64

	NEmitted    float64 // net emission counts
	UNEmitted   float64
	NTotEmpty   float64 // net scatter counts, solvent-only measurement
	UNTotEmpty  float64
	NTotSample  float64 // net scatter counts, sample measurement
	UNTotSample float64

	Reabsorption  float64 // weight w, zero when no dilute reference was given
	UReabsorption float64

	// Sample windows actually integrated, for plot annotations.
	ScatterFluor   IndexWindow
	ScatterSolvent IndexWindow
	EmissionFluor  IndexWindow

	// Baselines on the fluorophore and solvent axes, full spectrum length.
	ScatterBaselineFluor   []float64
	ScatterBaselineSolvent []float64
	EmissionBaseline       []float64
}

// PeakFit describes a Gaussian fit of the emission peak.
type PeakFit struct {
	Center    float64 // peak wavelength in nm
	Amplitude float64
	Sigma     float64
	Offset    float64
	FWHM      float64
}
