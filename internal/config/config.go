// Package config provides YAML-based configuration for the upload server.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration document.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Progress ProgressConfig `yaml:"progress"`
	Journal  JournalConfig  `yaml:"journal"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port              int    `yaml:"port"`
	BindAddress       string `yaml:"bindAddress"`
	EnableCORS        bool   `yaml:"enableCORS"`
	AllowOrigins      string `yaml:"allowOrigins"`
	ReadTimeout       int    `yaml:"readTimeoutSeconds"`
	WriteTimeout      int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout       int    `yaml:"idleTimeoutSeconds"`
	EnableCompression bool   `yaml:"enableCompression"`
}

// StorageConfig contains upload directory settings.
type StorageConfig struct {
	UploadsDirectory string `yaml:"uploadsDirectory"`
	MaxUploadSize    string `yaml:"maxUploadSize"`
}

// ProgressConfig controls how long finished upload progress stays queryable.
type ProgressConfig struct {
	RetentionSeconds int `yaml:"retentionSeconds"`
}

// JournalConfig controls the DuckDB event journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MirrorConfig controls copying uploads to an S3-compatible bucket.
type MirrorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
}

// AdvancedConfig contains logging and observability switches.
type AdvancedConfig struct {
	LogLevel             string `yaml:"logLevel"`
	LogFormat            string `yaml:"logFormat"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
	EnableMetrics        bool   `yaml:"enableMetrics"`
	EnableTracing        bool   `yaml:"enableTracing"`
	PrintQRCode          bool   `yaml:"printQRCode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              3000,
			BindAddress:       "0.0.0.0",
			EnableCORS:        true,
			AllowOrigins:      "*",
			ReadTimeout:       0,
			WriteTimeout:      0,
			IdleTimeout:       120,
			EnableCompression: false,
		},
		Storage: StorageConfig{
			UploadsDirectory: "uploads",
			MaxUploadSize:    "100MB",
		},
		Progress: ProgressConfig{
			RetentionSeconds: 300,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "lanbox-journal.duckdb",
		},
		Mirror: MirrorConfig{
			Region:       "us-east-1",
			UsePathStyle: true,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
			EnableMetrics:        true,
			EnableTracing:        false,
			PrintQRCode:          true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is created
// with defaults. Environment overrides are applied in both cases.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as YAML.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# lanbox configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		c.Storage.UploadsDirectory = dir
	}
	if size := os.Getenv("MAX_UPLOAD_SIZE"); size != "" {
		c.Storage.MaxUploadSize = size
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// Validate checks values that would otherwise fail at startup.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Storage.UploadsDirectory == "" {
		return errors.New("uploadsDirectory must not be empty")
	}
	if _, err := ParseSize(c.Storage.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid maxUploadSize: %w", err)
	}
	if c.Mirror.Enabled && c.Mirror.Bucket == "" {
		return errors.New("mirror.bucket is required when mirror is enabled")
	}
	return nil
}

// GetUploadDir returns the uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// EnsureDirectories creates the uploads directory and the journal's parent directory.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{c.Storage.UploadsDirectory}
	if c.Journal.Enabled && c.Journal.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetMaxUploadBytes returns the per-file limit in bytes. Errors are caught by Validate.
func (c *AppConfig) GetMaxUploadBytes() int64 {
	n, _ := ParseSize(c.Storage.MaxUploadSize)
	return n
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ParseSize converts "100MB", "2G", "512kb", "2 GiB" or "1024" to bytes using
// binary multiples. "0" means unlimited.
func ParseSize(s string) (int64, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("cannot parse size %q: %w", s, err)
	}
	// RAMInBytes converts from float64 without a range check; out-of-range
	// values come back negative or clamped.
	if n < 0 || n == math.MaxInt64 {
		return 0, fmt.Errorf("size %q is out of range", s)
	}
	return n, nil
}
