package config

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "oopcheck.yaml"

type Config struct {
	Check struct {
		StepBudget int    `yaml:"step_budget"` // 0 means unlimited
		Frontend   string `yaml:"frontend"`    // auto, clang or cpp
	} `yaml:"check"`
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
}

func Default() *Config {
	var cfg Config
	cfg.Check.StepBudget = 1_000_000
	cfg.Check.Frontend = "auto"
	cfg.Log.Level = "warn"
	cfg.Storage.DBPath = "oopcheck.db"
	return &cfg
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OOPCHECK_STEP_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errors.Newf("OOPCHECK_STEP_BUDGET must be a non-negative integer, got %q", v)
		}
		c.Check.StepBudget = n
	}
	if v := os.Getenv("OOPCHECK_FRONTEND"); v != "" {
		c.Check.Frontend = v
	}
	if v := os.Getenv("OOPCHECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OOPCHECK_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Newf("OOPCHECK_LOG_JSON must be a boolean, got %q", v)
		}
		c.Log.JSON = b
	}
	if v := os.Getenv("OOPCHECK_DB"); v != "" {
		c.Storage.DBPath = v
	}
	return nil
}
