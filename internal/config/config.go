// Package config loads olive settings with priority env > file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/manash/olive/internal/batch"
	"github.com/manash/olive/internal/designer"
	"github.com/manash/olive/internal/keys"
	"github.com/manash/olive/internal/session"
)

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"

	FileName = "config.yaml"
)

type Config struct {
	Models ModelsConfig `yaml:"models"`
	Store  StoreConfig  `yaml:"store"`
	Batch  BatchConfig  `yaml:"batch"`
	Server ServerConfig `yaml:"server"`
	Search SearchConfig `yaml:"search"`

	// TimeoutSec bounds each upstream HTTP call; 0 keeps provider defaults.
	TimeoutSec int  `yaml:"timeout_sec" validate:"gte=0"`
	Debug      bool `yaml:"debug"`
}

type ModelsConfig struct {
	Vision string `yaml:"vision" validate:"required"`
	Fast   string `yaml:"fast" validate:"required"`
	Image  string `yaml:"image" validate:"required"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite badger memory"`
	// Path is the database file (sqlite) or directory (badger). Empty
	// selects a location under the config directory.
	Path       string `yaml:"path"`
	QuotaBytes int    `yaml:"quota_bytes" validate:"gte=0"`
}

type BatchConfig struct {
	Size    int           `yaml:"size" validate:"gte=1"`
	Stagger time.Duration `yaml:"stagger" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type SearchConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

func Default() Config {
	return Config{
		Models: ModelsConfig{
			Vision: designer.DefaultVisionModel,
			Fast:   designer.DefaultFastModel,
			Image:  designer.DefaultImageModel,
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			QuotaBytes: session.DefaultQuota,
		},
		Batch: BatchConfig{
			Size:    batch.DefaultBatchSize,
			Stagger: batch.DefaultStagger,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// DefaultPath returns <config dir>/config.yaml.
func DefaultPath() (string, error) {
	dir, err := keys.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load merges the file at path (missing is fine) and the environment over
// the defaults, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("MODEL_CLAUDE"); v != "" {
		cfg.Models.Vision = v
	}
	if v := os.Getenv("MODEL_CLAUDE_FAST"); v != "" {
		cfg.Models.Fast = v
	}
	if v := os.Getenv("MODEL_DALLE"); v != "" {
		cfg.Models.Image = v
	}
	if v := os.Getenv("OLIVE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("OLIVE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("OLIVE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OLIVE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
