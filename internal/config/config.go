package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "IVDRADAR_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	rulesPathEnv   = "IVDRADAR_RULES"
)

// Config holds runtime settings for the digest pipeline shell. The curation
// core itself only ever sees the resolved ScoringConfig.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Rules    RulesConfig    `yaml:"rules"`
	Digest   DigestConfig   `yaml:"digest"`
	Input    InputConfig    `yaml:"input"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the optional Postgres feed store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RulesConfig points at the scoring rules overlay document.
type RulesConfig struct {
	ScoringPath string `yaml:"scoringPath"`
}

// DigestConfig bounds the rendered digest.
type DigestConfig struct {
	TopN  int    `yaml:"topN"`
	Title string `yaml:"title"`
}

// InputConfig locates the captured item batch to curate.
type InputConfig struct {
	BatchPath string `yaml:"batchPath"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. Unreadable or unparsable files fall back to defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(rulesPathEnv); v != "" {
		c.Rules.ScoringPath = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Database.DSN != "" {
		base.Database = override.Database
	}
	if override.Rules.ScoringPath != "" {
		base.Rules = override.Rules
	}
	if override.Digest.TopN > 0 {
		base.Digest.TopN = override.Digest.TopN
	}
	if override.Digest.Title != "" {
		base.Digest.Title = override.Digest.Title
	}
	if override.Input.BatchPath != "" {
		base.Input = override.Input
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Rules:   RulesConfig{ScoringPath: "rules/scoring.yaml"},
		Digest:  DigestConfig{TopN: 20, Title: "IVD industry digest"},
	}
}
