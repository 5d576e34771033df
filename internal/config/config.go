package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backends supported by the store.backend setting.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// SeedCustomer provisions one customer for the memory backend. The
// Postgres backend is provisioned by cmd/seeder instead.
type SeedCustomer struct {
	ID             int64 `yaml:"id"`
	OverdraftLimit int64 `yaml:"overdraft_limit"`
	Balance        int64 `yaml:"balance"`
}

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Backend  string `yaml:"backend"`
		DBSource string `yaml:"db_source"`
		WALPath  string `yaml:"wal_path"`
	} `yaml:"store"`
	Customers []SeedCustomer `yaml:"customers"`
}

// Load builds the configuration from defaults, then the YAML file named
// by CONFIG_FILE (if any), then environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Store.Backend = BackendPostgres

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = backend
	}
	if dbSource := os.Getenv("DB_SOURCE"); dbSource != "" {
		cfg.Store.DBSource = dbSource
	}
	if walPath := os.Getenv("WAL_PATH"); walPath != "" {
		cfg.Store.WALPath = walPath
	}

	switch cfg.Store.Backend {
	case BackendPostgres:
		if cfg.Store.DBSource == "" {
			return nil, fmt.Errorf("DB_SOURCE is required for the postgres backend")
		}
	case BackendMemory:
		if len(cfg.Customers) == 0 {
			return nil, fmt.Errorf("the memory backend requires seeded customers")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return cfg, nil
}
