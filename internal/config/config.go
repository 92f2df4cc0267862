// Package config implements the core's configuration-inputs surface:
// the two recognised environment variables, the four driver build flags,
// and the 0..3 optimisation level, bound into a single Config value
// threaded explicitly through the pipeline rather than read ad hoc.
//
// The scoped Bind primitive below covers the interned/process-wide pieces
// (library repository + version) that real compiler entry points do still
// expect to read as ambient defaults.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// BuildFlag is one of the four recognised driver build flags.
type BuildFlag string

const (
	FlagStrictFloatingPoint BuildFlag = "StrictFloatingPoint"
	FlagOmitEvaluate        BuildFlag = "OmitEvaluate"
	FlagOmitReactiveDrivers BuildFlag = "OmitReactiveDrivers"
	FlagDefault             BuildFlag = "Default"
)

const (
	envRepository = "KRONOS_CORE_LIBRARY_REPOSITORY"
	envVersion    = "KRONOS_CORE_LIBRARY_VERSION"

	defaultRepository = "https://pkg.kronoslang.io/core"
	defaultVersion    = "stable"
)

// Config is the build-configuration record threaded through a compile job.
type Config struct {
	LibraryRepository string      `yaml:"library_repository"`
	LibraryVersion     string      `yaml:"library_version"`
	Flags              []BuildFlag `yaml:"flags"`
	OptLevel           int         `yaml:"opt_level"`
}

// Default returns the compiled-in defaults,
// before any environment or file override is applied.
func Default() *Config {
	return &Config{
		LibraryRepository: defaultRepository,
		LibraryVersion:    defaultVersion,
		Flags:             []BuildFlag{FlagDefault},
		OptLevel:          2,
	}
}

// Load reads a YAML config file (if path is non-empty) layered on top of
// Default, then applies environment-variable overrides: compiled-in
// defaults first, configuration inputs over them.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envRepository); v != "" {
		c.LibraryRepository = v
	}
	if v := os.Getenv(envVersion); v != "" {
		c.LibraryVersion = v
	}
	if v := os.Getenv("SIGCORE_OPT_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 3 {
			c.OptLevel = n
		}
	}
}

// HasFlag reports whether f is among c's active build flags.
func (c *Config) HasFlag(f BuildFlag) bool {
	for _, g := range c.Flags {
		if g == f {
			return true
		}
	}
	return false
}

// clamp keeps OptLevel within the documented 0..3 range regardless of how
// a Config value was constructed (YAML file, env, or programmatically).
func (c *Config) clamp() {
	if c.OptLevel < 0 {
		c.OptLevel = 0
	}
	if c.OptLevel > 3 {
		c.OptLevel = 3
	}
}

// current holds the process-wide ambient Config used by entry points that
// have no explicit Config threaded to them yet (e.g. a backend's lazy
// constant interner, the "process-wide current context"). It starts as
// Default().
var current = Default()

// Current returns the ambient Config.
func Current() *Config { return current }

// Bind installs cfg as the ambient Config for the duration of fn, restoring
// the previous value on return, so nested Binds each scope their own
// override. current is a single package-level variable with no locking:
// Binds running concurrently on different goroutines are not isolated from
// each other.
func Bind(cfg *Config, fn func()) {
	cfg.clamp()
	prev := current
	current = cfg
	defer func() { current = prev }()
	fn()
}
