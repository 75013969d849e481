// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the pipeline configuration from YAML, applies
// environment overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps all validation failures of a loaded config.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level pipeline configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// creation.
type Config struct {
	// Reader contains 10X ingest settings.
	Reader ReaderConfig `yaml:"reader"`

	// Selection contains variable gene selection settings.
	Selection SelectionConfig `yaml:"selection"`

	// Cache contains dataset cache settings.
	Cache CacheConfig `yaml:"cache"`

	// Logging contains log output settings.
	Logging LoggingConfig `yaml:"logging"`
}

// ReaderConfig contains 10X ingest settings.
type ReaderConfig struct {
	DataType    string `yaml:"data_type" validate:"oneof=rna atac"`
	UseFiltered bool   `yaml:"use_filtered"`
	Reference   string `yaml:"reference"`
	MinUMI      int    `yaml:"min_umi" validate:"gte=0"`
	MaxCells    int    `yaml:"max_cells" validate:"gte=0"`
	Merge       bool   `yaml:"merge"`
	Parallelism int    `yaml:"parallelism" validate:"gte=0"`
}

// SelectionConfig contains variable gene selection settings.
type SelectionConfig struct {
	VarThresh   []float64 `yaml:"var_thresh" validate:"dive,gte=-5,lte=5"`
	AlphaThresh float64   `yaml:"alpha_thresh" validate:"gte=0,lte=1"`
	NumGenes    int       `yaml:"num_genes" validate:"gte=0"`
	Combine     string    `yaml:"combine" validate:"oneof=union intersect"`
	KeepUnique  bool      `yaml:"keep_unique"`
	Capitalize  bool      `yaml:"capitalize"`
}

// CacheConfig contains dataset cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Reader: ReaderConfig{
			DataType:    "rna",
			UseFiltered: true,
			MinUMI:      0,
			Parallelism: 4,
		},
		Selection: SelectionConfig{
			VarThresh:   []float64{0.1},
			AlphaThresh: 0.99,
			Combine:     "union",
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     "~/.liger/cache",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path into the default configuration, applies LIGER_*
// environment overrides, and validates. An empty path skips the file
// and uses defaults plus environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	loadFromEnv(&cfg)

	if err := validate.Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("LIGER_DATA_TYPE"); v != "" {
		cfg.Reader.DataType = v
	}
	if v := os.Getenv("LIGER_MIN_UMI"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Reader.MinUMI = i
		}
	}
	if v := os.Getenv("LIGER_PARALLELISM"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Reader.Parallelism = i
		}
	}
	if v := os.Getenv("LIGER_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("LIGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LIGER_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
}
