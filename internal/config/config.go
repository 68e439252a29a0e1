// Package config loads the xplanning.yaml settings shared by the commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = "xplanning.yaml"

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the settings of the CLI and the server.
type Config struct {
	LogLevel    string             `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Solver      string             `yaml:"solver"`
	SolversFile string             `yaml:"solvers_file"`
	Step        float64            `yaml:"step" validate:"gt=0"`
	Concurrency int                `yaml:"concurrency" validate:"gte=1"`
	Weber       map[string]float64 `yaml:"weber" validate:"dive,gt=0"`
	// ArtifactsDir keeps the requests sent to the solver; empty disables it.
	ArtifactsDir string `yaml:"artifacts_dir"`
	Cache        Cache  `yaml:"cache"`
	Server       Server `yaml:"server"`
}

// Cache selects where evaluations are memoized.
type Cache struct {
	Backend  string        `yaml:"backend" validate:"omitempty,oneof=none memory redis"`
	Addr     string        `yaml:"addr" validate:"required_if=Backend redis"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
	LockTTL  time.Duration `yaml:"lock_ttl" validate:"gte=0"`
}

// Server configures the HTTP server.
type Server struct {
	Addr         string        `yaml:"addr"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gte=0"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:    "warn",
		SolversFile: "solvers.yaml",
		Step:        1,
		Concurrency: 1,
		Cache:       Cache{Backend: CacheMemory, Prefix: "xplanning:"},
		Server:      Server{Addr: ":8080", Timeout: 5 * time.Minute},
	}
}

var validate = validator.New()

// Load reads the settings at path over the defaults. A missing file yields
// the defaults. Relative paths in the file are resolved against its directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.SolversFile = resolve(dir, cfg.SolversFile)
	cfg.ArtifactsDir = resolve(dir, cfg.ArtifactsDir)
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate checks the settings.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Level returns the slog level of LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return l
}
