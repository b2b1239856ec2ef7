package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/user/qy_analyzer_go/internal/config"
)

func main() {
	var (
		opts       Options
		configFile string
		verbose    bool
	)

	flag.StringVar(&opts.FluorPath, "fluor", "", "fluorophore scan taken inside the integrating sphere (required)")
	flag.StringVar(&opts.SolventPath, "solvent", "", "solvent-only reference scan (required)")
	flag.StringVar(&opts.DilutePath, "dilute", "", "dilute reference scan for reabsorption weighting")
	flag.StringVar(&opts.BackgroundPath, "background", "", "background scan subtracted before correction")
	flag.StringVar(&opts.ExtraPath, "extra", "", "synchronous scan divided out as an extra correction")
	flag.StringVar(&opts.Correction, "correction", "", "correction curve key (empty uses the configured default)")
	flag.Float64Var(&opts.ScatterLo, "scatter-lo", 0, "scatter window lower bound in nm (required)")
	flag.Float64Var(&opts.ScatterHi, "scatter-hi", 0, "scatter window upper bound in nm (required)")
	flag.Float64Var(&opts.EmissionLo, "emission-lo", 0, "emission window lower bound in nm (required)")
	flag.Float64Var(&opts.EmissionHi, "emission-hi", 0, "emission window upper bound in nm (required)")
	flag.Float64Var(&opts.NormWavelength, "norm-wl", 0, "normalization wavelength for the reabsorption estimate")
	flag.BoolVar(&opts.UseSolventBaseline, "solvent-baseline", false, "use the corrected solvent scan as the emission baseline")
	flag.IntVar(&opts.WindowLength, "window", 0, "baseline averaging window in samples (0 uses the configured default)")
	flag.Float64Var(&opts.Scale, "scale", 0, "scale factor applied after correction (0 leaves spectra unscaled)")
	flag.StringVar(&opts.ReportPath, "report", "qy_report.pdf", "output path for the PDF report")
	flag.StringVar(&opts.CorrectionsDir, "corrections-dir", "", "override the configured correction curve directory")
	flag.StringVar(&configFile, "config", "", "explicit config file (default qy_analyzer.yaml if present)")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.CorrectionsDir != "" {
		cfg.Corrections.Dir = opts.CorrectionsDir
	}

	app := NewApp(cfg)
	result, err := app.Run(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	fmt.Printf("QY = %.4f +/- %.4f\n", result.QY, result.UQY)
	if result.Reabsorption != 0 {
		fmt.Printf("raw QY = %.4f +/- %.4f, reabsorption w = %.4f +/- %.4f\n",
			result.QYRaw, result.UQYRaw, result.Reabsorption, result.UReabsorption)
	}
	fmt.Printf("report written to %s\n", opts.ReportPath)
}
