package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/user/qy_analyzer_go/internal/analysis"
)

// Config holds all configuration for the analyzer.
type Config struct {
	Corrections CorrectionsConfig
	Analysis    AnalysisConfig
	Report      ReportConfig
}

// CorrectionsConfig locates the instrument calibration exports.
type CorrectionsConfig struct {
	Dir   string
	Files map[string]string // correction key -> file name inside Dir
}

// AnalysisConfig carries analysis defaults that flags may override.
type AnalysisConfig struct {
	BaselineWindow int
	Correction     string
}

// ReportConfig carries report defaults.
type ReportConfig struct {
	Title string
}

// Load reads configuration from defaults, an optional YAML file and QY_*
// environment variables, in increasing precedence. An empty configFile means
// "qy_analyzer.yaml in the working directory, if present"; a named file that
// cannot be read is an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("corrections.dir", "corrections")
	v.SetDefault("corrections.files", map[string]string{
		string(analysis.CorrEmission):     "emcorri.txt",
		string(analysis.CorrSphere):       "emcorr_sphere.txt",
		string(analysis.CorrSphereQuanta): "emcorr_sphere_quanta.txt",
		string(analysis.CorrExcitation):   "excorr.txt",
	})
	v.SetDefault("analysis.baseline_window", analysis.DefaultBaselineWindow)
	v.SetDefault("analysis.correction", string(analysis.CorrNone))
	v.SetDefault("report.title", "Fluorescence Quantum Yield Report")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("qy_analyzer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // file is optional
	}

	v.SetEnvPrefix("QY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	cfg.Corrections.Dir = v.GetString("corrections.dir")
	cfg.Corrections.Files = v.GetStringMapString("corrections.files")
	cfg.Analysis.BaselineWindow = v.GetInt("analysis.baseline_window")
	cfg.Analysis.Correction = v.GetString("analysis.correction")
	cfg.Report.Title = v.GetString("report.title")

	log.Debug().
		Str("corrections_dir", cfg.Corrections.Dir).
		Int("baseline_window", cfg.Analysis.BaselineWindow).
		Str("default_correction", cfg.Analysis.Correction).
		Msg("Configuration loaded")

	return &cfg, nil
}

// CurveSources resolves the configured correction files against the
// corrections directory, keyed for the curve library. Keys with an empty
// file name stay unregistered.
func (c *Config) CurveSources() map[analysis.CorrectionKey]string {
	sources := make(map[analysis.CorrectionKey]string, len(c.Corrections.Files))
	for key, name := range c.Corrections.Files {
		if name == "" {
			continue
		}
		sources[analysis.CorrectionKey(key)] = filepath.Join(c.Corrections.Dir, name)
	}
	return sources
}
