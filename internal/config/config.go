// Package config layers esc's runtime configuration: built-in defaults,
// an optional .esc.yaml file, ESC_-prefixed environment variables, and
// finally explicit command-line flags, in that order of precedence.
//
// Grounded on the teacher's flag/env handling in main.go (GOOS/GOARCH-
// style target parsing, a VerboseMode toggle) generalized onto
// spf13/viper for file+env layering and github.com/xyproto/env/v2 for
// the handful of simple boolean/string toggles viper doesn't need to
// own (NO_COLOR, ESC_HOME).
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xyproto/env/v2"
)

// Target is the compilation target selected by --target (spec.md §6).
type Target string

const (
	TargetAsm Target = "asm"
	TargetIR  Target = "ir"
	TargetExe Target = "exe"
	TargetVM  Target = "vm"
	TargetEO  Target = "eo"
)

// ParseTarget validates a --target value.
func ParseTarget(s string) (Target, bool) {
	switch Target(strings.ToLower(s)) {
	case TargetAsm, TargetIR, TargetExe, TargetVM, TargetEO:
		return Target(strings.ToLower(s)), true
	default:
		return "", false
	}
}

// Config is the fully-resolved configuration for one esc invocation.
type Config struct {
	Target    Target
	Output    string
	KeepTemp  bool
	ShowIR    bool
	Verbose   bool
	MaxWorkers int

	// Home is taken from ESC_HOME (falls back to the current directory).
	// The runtime-object search does not read it.
	Home string

	// NoColor records the NO_COLOR convention. Diagnostics are never
	// colored, so nothing reads it.
	NoColor bool
}

// Default returns the built-in defaults, before any file, environment,
// or flag overrides are applied.
func Default() *Config {
	return &Config{
		Target:     TargetExe,
		Output:     "",
		KeepTemp:   false,
		ShowIR:     false,
		Verbose:    false,
		MaxWorkers: 4,
		Home:       ".",
		NoColor:    false,
	}
}

// Load builds the effective config: defaults, then an optional
// .esc.yaml in the working directory, then ESC_-prefixed environment
// variables, then explicit flags bound on fs (only flags the caller
// actually changed take precedence, via fs.Changed).
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName(".esc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("ESC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("target", string(cfg.Target))
	v.SetDefault("output", cfg.Output)
	v.SetDefault("keep_temp", cfg.KeepTemp)
	v.SetDefault("show_ir", cfg.ShowIR)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("max_workers", cfg.MaxWorkers)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if t, ok := ParseTarget(v.GetString("target")); ok {
		cfg.Target = t
	}
	cfg.Output = v.GetString("output")
	cfg.KeepTemp = v.GetBool("keep_temp")
	cfg.ShowIR = v.GetBool("show_ir")
	cfg.Verbose = v.GetBool("verbose")
	if n := v.GetInt("max_workers"); n > 0 {
		cfg.MaxWorkers = n
	}

	cfg.Home = env.Str("ESC_HOME", cfg.Home)
	cfg.NoColor = env.Bool("NO_COLOR") || cfg.NoColor

	if fs != nil {
		applyFlagOverrides(fs, cfg)
	}

	return cfg, nil
}

// applyFlagOverrides overrides cfg fields only for flags the caller
// explicitly set, the Changed-guarded precedence idiom used throughout
// the cobra-based CLIs in the example pack.
func applyFlagOverrides(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("target") {
		if s, err := fs.GetString("target"); err == nil {
			if t, ok := ParseTarget(s); ok {
				cfg.Target = t
			}
		}
	}
	if fs.Changed("output") {
		if s, err := fs.GetString("output"); err == nil {
			cfg.Output = s
		}
	}
	if fs.Changed("keep-temp") {
		if b, err := fs.GetBool("keep-temp"); err == nil {
			cfg.KeepTemp = b
		}
	}
	if fs.Changed("show-ir") {
		if b, err := fs.GetBool("show-ir"); err == nil {
			cfg.ShowIR = b
		}
	}
	if fs.Changed("verbose") {
		if b, err := fs.GetBool("verbose"); err == nil {
			cfg.Verbose = b
		}
	}
}
