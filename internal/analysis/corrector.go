package analysis

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/user/qy_analyzer_go/internal/parser"
)

// CurveLibrary resolves correction keys to the calibration curves exported
// from the instrument as <Group> files. Curves load lazily on first use and
// stay cached for the rest of the run.
type CurveLibrary struct {
	sources map[CorrectionKey]string
	cache   map[CorrectionKey]*parser.Spectrum
}

// NewCurveLibrary builds a library over a key-to-file mapping. Missing keys
// are allowed here and only fail if a correction asks for them.
func NewCurveLibrary(sources map[CorrectionKey]string) *CurveLibrary {
	lib := &CurveLibrary{
		sources: make(map[CorrectionKey]string, len(sources)),
		cache:   make(map[CorrectionKey]*parser.Spectrum),
	}
	for key, path := range sources {
		lib.sources[key] = path
	}
	return lib
}

// Register adds or replaces the file behind a key and drops any cached curve.
func (l *CurveLibrary) Register(key CorrectionKey, path string) {
	l.sources[key] = path
	delete(l.cache, key)
}

// Curve returns the parsed calibration curve for key. CorrNone resolves to
// no curve at all and returns (nil, nil).
func (l *CurveLibrary) Curve(key CorrectionKey) (*parser.Spectrum, error) {
	if key == CorrNone {
		return nil, nil
	}
	if !key.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCorrection, key)
	}
	if curve, ok := l.cache[key]; ok {
		return curve, nil
	}
	path, ok := l.sources[key]
	if !ok {
		return nil, fmt.Errorf("%w: no curve file registered for %q", ErrUnknownCorrection, key)
	}
	curve, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading correction curve %q: %w", key, err)
	}
	if curve.FileType != parser.FileGroup {
		return nil, fmt.Errorf("correction curve %q: %s is a %s export, want Group",
			key, path, curve.FileType)
	}
	log.Debug().
		Str("key", string(key)).
		Str("path", path).
		Int("samples", curve.Samples()).
		Msg("Loaded correction curve")
	l.cache[key] = curve
	return curve, nil
}

// Corrector turns raw spectra into corrected ones: background subtraction,
// calibration curve multiplication, optional synchronous re-correction and
// optional scaling, with first-order uncertainty propagation throughout.
type Corrector struct {
	curves *CurveLibrary
}

func NewCorrector(curves *CurveLibrary) *Corrector {
	return &Corrector{curves: curves}
}

// Apply computes the corrected view of spec without touching the record.
// Attach the result with spec.AttachCorrection once the whole chain has
// succeeded.
func (c *Corrector) Apply(spec *parser.Spectrum, key CorrectionKey, opts CorrectionOptions) (*Correction, error) {
	n := spec.Samples()
	if n == 0 {
		return nil, fmt.Errorf("spectrum %s has no samples", spec.SourcePath)
	}
	background := opts.Background
	if background == nil {
		background = make([]float64, n)
	}
	if len(background) != n {
		return nil, fmt.Errorf("background has %d values for %d wavelengths", len(background), n)
	}
	for i, b := range background {
		if b < 0 {
			return nil, fmt.Errorf("background is negative (%g counts) at %.2f nm", b, spec.Wavelengths[i])
		}
	}

	curve, err := c.curves.Curve(key)
	if err != nil {
		return nil, err
	}
	var curveVals []float64
	if curve != nil {
		if curve.RunType != spec.RunType {
			return nil, fmt.Errorf("%w: curve %q is %s, spectrum %s is %s",
				ErrRunTypeMismatch, key, curve.RunType, spec.SourcePath, spec.RunType)
		}
		curveVals, err = curveAt(curve, spec.Wavelengths)
		if err != nil {
			return nil, err
		}
	}

	raw := spec.RawIntensity()
	rawU := spec.RawUncertainty
	intensity := make([]float64, n)
	uncertainty := make([]float64, n)
	for i := 0; i < n; i++ {
		v := raw[i] - background[i]
		// Background counts obey the same Poisson statistics as the signal,
		// so its variance is the count itself.
		u := math.Sqrt(rawU[i]*rawU[i] + background[i])
		if curveVals != nil {
			v *= curveVals[i]
			u *= curveVals[i]
		}
		intensity[i] = v
		uncertainty[i] = u
	}

	if opts.Extra != nil {
		if err := applyExtraCorrection(spec, opts.Extra, intensity, uncertainty); err != nil {
			return nil, err
		}
	}

	if opts.Scale != 0 {
		floats.Scale(opts.Scale, intensity)
		floats.Scale(opts.Scale, uncertainty)
	}

	return &Correction{Intensity: intensity, Uncertainty: uncertainty}, nil
}

// applyExtraCorrection divides a synchronous reference scan out of the
// corrected intensity in place, folding the reference's own Poisson
// uncertainty in through the quotient rule.
func applyExtraCorrection(spec, extra *parser.Spectrum, intensity, uncertainty []float64) error {
	if extra.RunType != parser.RunSynchronous {
		return fmt.Errorf("%w: %s is a %s scan", ErrExtraCorrectionType, extra.SourcePath, extra.RunType)
	}
	if !extra.IsCorrected() {
		return fmt.Errorf("%w: extra correction %s", ErrUncorrectedInput, extra.SourcePath)
	}
	extraVals, err := interpTo(extra.Wavelengths, extra.CorrectedIntensity, spec.Wavelengths)
	if err != nil {
		return fmt.Errorf("extra correction %s: %w", extra.SourcePath, err)
	}
	extraRaw, err := interpTo(extra.Wavelengths, extra.RawIntensity(), spec.Wavelengths)
	if err != nil {
		return fmt.Errorf("extra correction %s: %w", extra.SourcePath, err)
	}
	for i := range intensity {
		ev := extraVals[i]
		if ev == 0 {
			return fmt.Errorf("extra correction %s is zero at %.2f nm",
				extra.SourcePath, spec.Wavelengths[i])
		}
		// Zero raw counts carry zero Poisson width.
		eu := 0.0
		if extraRaw[i] != 0 {
			eu = ev * math.Sqrt(math.Abs(extraRaw[i])) / extraRaw[i]
		}
		q := intensity[i] / ev
		a := uncertainty[i] / ev
		b := intensity[i] * eu / (ev * ev)
		intensity[i] = q
		uncertainty[i] = math.Sqrt(a*a + b*b)
	}
	return nil
}

// curveAt evaluates the curve's piecewise-linear response at each requested
// wavelength. Outside the curve's domain the response is zero.
func curveAt(curve *parser.Spectrum, wavelengths []float64) ([]float64, error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(curve.Wavelengths, curve.RawIntensity()); err != nil {
		return nil, fmt.Errorf("correction curve %s: %w", curve.SourcePath, err)
	}
	lo := curve.Wavelengths[0]
	hi := curve.Wavelengths[curve.Samples()-1]
	out := make([]float64, len(wavelengths))
	for i, x := range wavelengths {
		if x < lo || x > hi {
			continue
		}
		out[i] = pl.Predict(x)
	}
	return out, nil
}

// interpTo resamples ys, defined on xs, onto the target axis. Beyond the
// source domain the end values extend flat.
func interpTo(xs, ys, target []float64) ([]float64, error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	out := make([]float64, len(target))
	for i, x := range target {
		out[i] = pl.Predict(x)
	}
	return out, nil
}
