package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/user/qy_analyzer_go/internal/analysis"
	"github.com/user/qy_analyzer_go/internal/config"
	"github.com/user/qy_analyzer_go/internal/parser"
	"github.com/user/qy_analyzer_go/internal/report"
)

// Options carries the command line parameters of one analysis run.
type Options struct {
	FluorPath      string
	SolventPath    string
	DilutePath     string
	BackgroundPath string
	ExtraPath      string

	Correction string
	Scale      float64

	ScatterLo, ScatterHi   float64
	EmissionLo, EmissionHi float64
	NormWavelength         float64
	UseSolventBaseline     bool
	WindowLength           int

	ReportPath     string
	CorrectionsDir string
}

// App wires the parser, corrector, analysis and report stages together.
type App struct {
	cfg       *config.Config
	corrector *analysis.Corrector
}

// NewApp builds the pipeline over the configured correction curve library.
func NewApp(cfg *config.Config) *App {
	return &App{
		cfg:       cfg,
		corrector: analysis.NewCorrector(analysis.NewCurveLibrary(cfg.CurveSources())),
	}
}

// Run executes the full pipeline and leaves a PDF report at opts.ReportPath.
func (a *App) Run(opts Options) (*analysis.QYResult, error) {
	if err := a.validate(&opts); err != nil {
		return nil, err
	}
	key := analysis.CorrectionKey(opts.Correction)

	fluor, err := a.loadSpectrum(opts.FluorPath, "fluorophore")
	if err != nil {
		return nil, err
	}
	solvent, err := a.loadSpectrum(opts.SolventPath, "solvent")
	if err != nil {
		return nil, err
	}
	var dilute *parser.Spectrum
	if opts.DilutePath != "" {
		if dilute, err = a.loadSpectrum(opts.DilutePath, "dilute reference"); err != nil {
			return nil, err
		}
	}

	background, err := a.loadBackground(opts.BackgroundPath)
	if err != nil {
		return nil, err
	}
	extra, err := a.loadExtra(opts.ExtraPath)
	if err != nil {
		return nil, err
	}

	corrOpts := analysis.CorrectionOptions{
		Background: background,
		Extra:      extra,
		Scale:      opts.Scale,
	}
	if err := a.correct(fluor, "fluorophore", key, corrOpts); err != nil {
		return nil, err
	}
	if err := a.correct(solvent, "solvent", key, corrOpts); err != nil {
		return nil, err
	}
	if dilute != nil {
		if err := a.correct(dilute, "dilute reference", key, corrOpts); err != nil {
			return nil, err
		}
	}

	params := analysis.QYParams{
		ScatterLo:          opts.ScatterLo,
		ScatterHi:          opts.ScatterHi,
		EmissionLo:         opts.EmissionLo,
		EmissionHi:         opts.EmissionHi,
		UseSolventBaseline: opts.UseSolventBaseline,
		Dilute:             dilute,
		NormWavelength:     opts.NormWavelength,
		WindowLength:       opts.WindowLength,
	}
	res, err := analysis.ComputeQY(fluor, solvent, params)
	if err != nil {
		return nil, err
	}
	log.Info().
		Float64("qy", res.QY).
		Float64("uqy", res.UQY).
		Float64("qy_raw", res.QYRaw).
		Float64("reabsorption", res.Reabsorption).
		Msg("Quantum yield computed")

	peak := a.fitPeak(fluor, res)
	images := a.renderPlots(fluor, solvent, dilute, res)

	data := &report.ReportData{
		Title:         a.cfg.Report.Title,
		CorrectionKey: string(key),
		Fluor:         fluor,
		Solvent:       solvent,
		Dilute:        dilute,
		Result:        res,
		Peak:          peak,
		PlotImages:    images,
	}
	if err := report.BuildPDFReport(opts.ReportPath, data); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	log.Info().Str("path", opts.ReportPath).Msg("Report written")

	return res, nil
}

// validate fills config-backed defaults into opts and rejects unusable
// parameter combinations before any file is touched.
func (a *App) validate(opts *Options) error {
	if opts.FluorPath == "" || opts.SolventPath == "" {
		return fmt.Errorf("both --fluor and --solvent measurements are required")
	}
	if opts.ScatterLo >= opts.ScatterHi {
		return fmt.Errorf("scatter window [%g, %g] nm is empty", opts.ScatterLo, opts.ScatterHi)
	}
	if opts.EmissionLo >= opts.EmissionHi {
		return fmt.Errorf("emission window [%g, %g] nm is empty", opts.EmissionLo, opts.EmissionHi)
	}
	if opts.Correction == "" {
		opts.Correction = a.cfg.Analysis.Correction
	}
	if !analysis.CorrectionKey(opts.Correction).Known() {
		return fmt.Errorf("unknown correction key %q, known keys: %s", opts.Correction, knownKeyList())
	}
	if opts.WindowLength == 0 {
		opts.WindowLength = a.cfg.Analysis.BaselineWindow
	}
	return nil
}

func knownKeyList() string {
	keys := analysis.KnownCorrectionKeys()
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = string(key)
	}
	return strings.Join(names, ", ")
}

func (a *App) loadSpectrum(path, role string) (*parser.Spectrum, error) {
	spec, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s measurement: %w", role, err)
	}
	log.Info().
		Str("role", role).
		Str("file", path).
		Str("run", spec.RunType.String()).
		Int("samples", spec.Samples()).
		Msg("Parsed spectrum")
	return spec, nil
}

// loadBackground reads the background scan and hands back its raw counts.
func (a *App) loadBackground(path string) ([]float64, error) {
	if path == "" {
		return nil, nil
	}
	spec, err := a.loadSpectrum(path, "background")
	if err != nil {
		return nil, err
	}
	return spec.RawIntensity(), nil
}

// loadExtra reads the synchronous reference scan and attaches its own
// Poisson-weighted counts, which the corrector later divides out of the
// measurements. No curve applies here: the calibration curves are tied to
// emission or excitation sweeps and never match a synchronous scan.
func (a *App) loadExtra(path string) (*parser.Spectrum, error) {
	if path == "" {
		return nil, nil
	}
	spec, err := a.loadSpectrum(path, "extra correction")
	if err != nil {
		return nil, err
	}
	corr, err := a.corrector.Apply(spec, analysis.CorrNone, analysis.CorrectionOptions{})
	if err != nil {
		return nil, fmt.Errorf("preparing extra correction scan: %w", err)
	}
	if err := spec.AttachCorrection(corr.Intensity, corr.Uncertainty); err != nil {
		return nil, fmt.Errorf("preparing extra correction scan: %w", err)
	}
	return spec, nil
}

func (a *App) correct(spec *parser.Spectrum, role string, key analysis.CorrectionKey, opts analysis.CorrectionOptions) error {
	corr, err := a.corrector.Apply(spec, key, opts)
	if err != nil {
		return fmt.Errorf("correcting %s measurement: %w", role, err)
	}
	if err := spec.AttachCorrection(corr.Intensity, corr.Uncertainty); err != nil {
		return fmt.Errorf("correcting %s measurement: %w", role, err)
	}
	log.Debug().Str("role", role).Str("correction", string(key)).Msg("Correction attached")
	return nil
}

// fitPeak tries a Gaussian fit over the emission window. Reports survive
// without it, so failures only warn.
func (a *App) fitPeak(fluor *parser.Spectrum, res *analysis.QYResult) *analysis.PeakFit {
	peak, err := analysis.FitEmissionPeak(fluor.Wavelengths, fluor.CorrectedIntensity, res.EmissionFluor)
	if err != nil {
		log.Warn().Err(err).Msg("Emission peak fit skipped")
		return nil
	}
	log.Info().
		Float64("center_nm", peak.Center).
		Float64("fwhm_nm", peak.FWHM).
		Msg("Emission peak fitted")
	return peak
}

// renderPlots draws every figure the report can hold. A single failed plot
// is not worth losing the report over, so failures warn and skip.
func (a *App) renderPlots(fluor, solvent, dilute *parser.Spectrum, res *analysis.QYResult) map[string][]byte {
	images := make(map[string][]byte)

	if img, err := report.CreateQYRegionsPlot(fluor, solvent, res); err != nil {
		log.Warn().Err(err).Msg("Skipping integration regions plot")
	} else {
		images["qy_regions"] = img
	}

	spectra := []struct {
		name string
		spec *parser.Spectrum
	}{
		{"spectrum_fluor", fluor},
		{"spectrum_solvent", solvent},
		{"spectrum_dilute", dilute},
	}
	for _, entry := range spectra {
		if entry.spec == nil {
			continue
		}
		img, err := report.CreateSpectrumPlot(entry.spec, "")
		if err != nil {
			log.Warn().Err(err).Str("plot", entry.name).Msg("Skipping spectrum plot")
			continue
		}
		images[entry.name] = img
	}
	return images
}
