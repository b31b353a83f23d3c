// Package config handles reading and writing .mabel/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .mabel/config.yaml.
type Config struct {
	Version  int            `yaml:"version"`
	DataDir  string         `yaml:"data_dir"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeout    int    `yaml:"read_timeout"`  // seconds
	WriteTimeout   int    `yaml:"write_timeout"` // seconds
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"` // ms
}

// StorageConfig holds the object storage root for audio uploads.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// AIConfig describes the OpenAI-compatible generation endpoint.
type AIConfig struct {
	BaseURL            string `yaml:"base_url"`
	Model              string `yaml:"model"`
	TranscriptionModel string `yaml:"transcription_model"`
	APIKeyEnv          string `yaml:"api_key_env"`
	Timeout            int    `yaml:"timeout"` // seconds
	MaxTokens          int    `yaml:"max_tokens"`
	QuestionsPerModule int    `yaml:"questions_per_module"`
}

// JobsConfig controls the background worker pool.
type JobsConfig struct {
	Workers      int `yaml:"workers"`
	PollInterval int `yaml:"poll_interval"` // ms
	MaxAttempts  int `yaml:"max_attempts"`
}

// CleanupConfig controls "mabel clean".
type CleanupConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

const configDir = ".mabel"
const configFile = "config.yaml"

// ReadConfig reads .mabel/config.yaml from the given directory.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to .mabel/config.yaml in the given directory.
// Creates the .mabel/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Load reads the config in dir, falling back to defaults when no file exists,
// and fills in any zero values with defaults.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	cfg.resolvePaths(dir)
	return cfg, nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: filepath.Join(configDir, "data"),
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			ReadTimeout:    30,
			WriteTimeout:   60,
			MaxUploadBytes: 50 << 20,
		},
		Database: DatabaseConfig{
			Path:        "mabel.db",
			BusyTimeout: 5000,
		},
		Storage: StorageConfig{
			Root: "uploads",
		},
		AI: AIConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			TranscriptionModel: "whisper-1",
			APIKeyEnv:          "MABEL_AI_API_KEY",
			Timeout:            120,
			MaxTokens:          4000,
			QuestionsPerModule: 8,
		},
		Jobs: JobsConfig{
			Workers:      2,
			PollInterval: 2000,
			MaxAttempts:  3,
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
		},
	}
}

// APIKey returns the API key from the configured environment variable.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.AI.APIKeyEnv))
}

// AITimeout returns the AI request timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.Timeout) * time.Second
}

// PollInterval returns the job poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollInterval) * time.Millisecond
}

// BusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeout) * time.Millisecond
}

// applyDefaults fills zero values so older config files keep working.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Database.BusyTimeout <= 0 {
		c.Database.BusyTimeout = d.Database.BusyTimeout
	}
	if c.Storage.Root == "" {
		c.Storage.Root = d.Storage.Root
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = d.AI.BaseURL
	}
	if c.AI.Model == "" {
		c.AI.Model = d.AI.Model
	}
	if c.AI.TranscriptionModel == "" {
		c.AI.TranscriptionModel = d.AI.TranscriptionModel
	}
	if c.AI.APIKeyEnv == "" {
		c.AI.APIKeyEnv = d.AI.APIKeyEnv
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = d.AI.Timeout
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = d.AI.MaxTokens
	}
	if c.AI.QuestionsPerModule <= 0 {
		c.AI.QuestionsPerModule = d.AI.QuestionsPerModule
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = d.Jobs.Workers
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = d.Jobs.PollInterval
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = d.Jobs.MaxAttempts
	}
	if c.Cleanup.MaxAgeDays <= 0 {
		c.Cleanup.MaxAgeDays = d.Cleanup.MaxAgeDays
	}
}

// resolvePaths anchors relative paths: data_dir to dir, database and storage
// to data_dir.
func (c *Config) resolvePaths(dir string) {
	if !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(dir, c.DataDir)
	}
	if !filepath.IsAbs(c.Database.Path) {
		c.Database.Path = filepath.Join(c.DataDir, c.Database.Path)
	}
	if !filepath.IsAbs(c.Storage.Root) {
		c.Storage.Root = filepath.Join(c.DataDir, c.Storage.Root)
	}
}
