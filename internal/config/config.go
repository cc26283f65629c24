// Package config loads the engine's YAML configuration, grounded on the
// teacher's internal/application/config.go (os.ReadFile + yaml.Unmarshal
// into a plain struct, one Load*Config per config file).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options is the §6 configuration table plus the ambient wiring this
// expansion adds (store DSNs, HTTP bind address, log level).
type Options struct {
	WindowMin      int     `yaml:"window_min"`
	WindowMax      int     `yaml:"window_max"`
	WindowStep     int     `yaml:"window_step"`
	ForecastDays   int     `yaml:"forecast_days"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Workers        int     `yaml:"workers"`
	RNGSeed        *int64  `yaml:"rng_seed"`
	RMSECeiling    float64 `yaml:"rmse_ceiling"`

	PostgresDSN     string `yaml:"postgres_dsn"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisDB         int    `yaml:"redis_db"`
	RedisTTLSeconds int    `yaml:"redis_ttl_seconds"`

	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the §6 configuration table's defaults, plus sane ambient
// defaults for the fields SPEC_FULL.md adds.
func Default() Options {
	return Options{
		WindowMin:      125,
		WindowMax:      750,
		WindowStep:     5,
		ForecastDays:   60,
		TimeoutSeconds: 60,
		Workers:        0, // 0 => min(cores, 8), resolved by the sweep package
		RMSECeiling:    0.5,
		RedisTTLSeconds: 300,
		HTTPAddr:        "127.0.0.1:8080",
		LogLevel:        "info",
	}
}

// Load reads and parses a YAML options file at path, overlaying it on
// Default() so a partial file only needs to set the fields it wants to
// override.
func Load(path string) (Options, error) {
	opts := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return opts, nil
}
