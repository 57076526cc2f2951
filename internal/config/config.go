// Package config loads engine configuration from a TOML file, following
// the teacher's manifest.go / DefaultConfig() pattern: sane defaults from
// DefaultConfig, overridden field-by-field by whatever the file sets.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config bundles the process-wide settings the design notes call for
// gathering into an Engine struct rather than leaving as globals: sample
// rate, prelude path, log path, cache directory, and audio block size.
type Config struct {
	SampleRate  float64 `toml:"sample_rate"`
	PreludeFile string  `toml:"prelude_file"`
	LogFile     string  `toml:"log_file"`
	CacheDir    string  `toml:"cache_dir"`
	BlockSize   int     `toml:"block_size"`
	ChannelCap  int     `toml:"channel_cap"`
	Interactive bool    `toml:"interactive"`
	Quiet       bool    `toml:"quiet"`
}

// DefaultConfig mirrors the teacher's lib/runtime/runtime.go: baked-in
// defaults, overridable by an environment variable naming a config file.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		LogFile:    "sapf.log",
		CacheDir:   ".sapf-cache",
		BlockSize:  64,
		ChannelCap: 32,
	}
}

// Load reads path as TOML over top of DefaultConfig(); a missing file is
// not an error (the defaults stand), matching the teacher's tolerant
// manifest loading.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv resolves the config file path from SAPF_CONFIG, per
// SPEC_FULL.md's ambient-stack section (the audio/DSP domain has no
// analogue to the teacher's trash-directory env vars, so only the config
// path itself is environment-driven).
func FromEnv() (Config, error) {
	return Load(os.Getenv("SAPF_CONFIG"))
}
