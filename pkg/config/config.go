// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/storage"
)

const (
	DefaultAPIListen   = ":8080"
	DefaultAdminListen = ":9650"
	DefaultLogLevel    = "info"
)

// Gin modes accepted by api.mode.
const (
	ModeRelease = "release"
	ModeDebug   = "debug"
	ModeTest    = "test"
)

// Config captures the runtime settings for samizdatd.
type Config struct {
	API     APIConfig      `yaml:"api"`
	Admin   AdminConfig    `yaml:"admin"`
	Storage storage.Config `yaml:"storage"`
	Log     LogConfig      `yaml:"log"`
}

// APIConfig configures the public HTTP API.
type APIConfig struct {
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`
	Mode        string   `yaml:"mode"`
}

// AdminConfig configures the health and metrics listener.
type AdminConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration for a single in-memory node.
func Default() Config {
	return Config{
		API:     APIConfig{Listen: DefaultAPIListen, Mode: ModeRelease},
		Admin:   AdminConfig{Listen: DefaultAdminListen},
		Storage: storage.Config{Backend: storage.BackendMemory},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads the YAML configuration from disk and validates the result.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Finalize normalizes and validates cfg. Call it again after applying
// flag overrides.
func (cfg *Config) Finalize() error {
	cfg.normalize()
	return cfg.validate()
}

func (cfg *Config) normalize() {
	cfg.API.Listen = strings.TrimSpace(cfg.API.Listen)
	if cfg.API.Listen == "" {
		cfg.API.Listen = DefaultAPIListen
	}
	cfg.API.Mode = strings.ToLower(strings.TrimSpace(cfg.API.Mode))
	if cfg.API.Mode == "" {
		cfg.API.Mode = ModeRelease
	}
	origins := make([]string, 0, len(cfg.API.CORSOrigins))
	for _, origin := range cfg.API.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.API.CORSOrigins = origins

	cfg.Admin.Listen = strings.TrimSpace(cfg.Admin.Listen)
	if cfg.Admin.Listen == "" {
		cfg.Admin.Listen = DefaultAdminListen
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendMemory
	}
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Storage.DSN = strings.TrimSpace(cfg.Storage.DSN)

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func (cfg *Config) validate() error {
	switch cfg.API.Mode {
	case ModeRelease, ModeDebug, ModeTest:
	default:
		return fmt.Errorf("api: unknown mode %q", cfg.API.Mode)
	}
	if cfg.API.Listen == cfg.Admin.Listen {
		return fmt.Errorf("api and admin cannot share listen address %q", cfg.API.Listen)
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func validateStorage(cfg storage.Config) error {
	switch cfg.Backend {
	case storage.BackendMemory:
		return nil
	case storage.BackendBadger, storage.BackendBolt:
		if cfg.Path == "" {
			return fmt.Errorf("%s backend requires path", cfg.Backend)
		}
		return nil
	case storage.BackendPostgres:
		if cfg.DSN == "" {
			return fmt.Errorf("postgres backend requires dsn")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
