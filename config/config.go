// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"log"
	"runtime"

	"github.com/spf13/viper"
)

// Config is the root-level settings struct and is a mix of settings
// available in settings.yaml and those available from the command line
type Config struct {
	// the minimum number of observations a protein profile needs before
	// it is fit at all
	MinObs int `mapstructure:"min-obs"`

	// the fold-change cutoff of the independent filter
	FCThreshold float64 `mapstructure:"fc-threshold"`

	// whether to apply the independent fold-change filter before fitting
	IndependentFiltering bool `mapstructure:"independent-filtering"`

	// the optimizer iteration cap per model fit
	MaxIterations int `mapstructure:"max-iterations"`

	// the gonum minimizer: nelder-mead, lbfgs or gradient
	Method string `mapstructure:"method"`

	// whether to hand the optimizer the analytic gradient
	Gradient bool `mapstructure:"gradient"`

	// whether to refine the alternative fit with the trimmed objective
	Trimmed bool `mapstructure:"trimmed"`

	// the fraction of observations the trimmed objective keeps
	TrimKeep float64 `mapstructure:"trim-keep"`

	// the number of bootstrap rounds B
	Rounds int `mapstructure:"b"`

	// whether residual resampling is stratified by MS experiment
	ByMsExp bool `mapstructure:"by-ms-exp"`

	// the resampling strategy: null-refit, alt-residual or fast-shuffle
	Strategy string `mapstructure:"strategy"`

	// the seed feeding the per-protein random sources
	Seed int64 `mapstructure:"seed"`

	// the worker pool size for per-protein tasks
	Workers int `mapstructure:"workers"`

	// the FDR cutoff for hit calling
	Alpha float64 `mapstructure:"alpha"`
}

// SetDefaults registers every recognized setting with its default value
// so that settings absent from both the settings file and the command
// line still unmarshal
func SetDefaults() {
	viper.SetDefault("min-obs", 20)
	viper.SetDefault("fc-threshold", 1.5)
	viper.SetDefault("independent-filtering", false)
	viper.SetDefault("max-iterations", 500)
	viper.SetDefault("method", "nelder-mead")
	viper.SetDefault("gradient", false)
	viper.SetDefault("trimmed", false)
	viper.SetDefault("trim-keep", 0.9)
	viper.SetDefault("b", 20)
	viper.SetDefault("by-ms-exp", true)
	viper.SetDefault("strategy", "fast-shuffle")
	viper.SetDefault("seed", 1)
	viper.SetDefault("workers", runtime.NumCPU()-1)
	viper.SetDefault("alpha", 0.1)
}

// New returns a new Config struct populated by Viper settings (either
// from the local settings.yaml) and/or command line arguments
func New() *Config {
	var c Config

	if err := viper.Unmarshal(&c); err != nil {
		log.Fatalf("unable to decode settings into struct, %v", err)
	}

	return &c
}
