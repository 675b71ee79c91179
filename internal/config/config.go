// Package config handles loading and parsing of PicStash configuration.
package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// InsecureAPIKeyDefault is the placeholder API key shipped in the default
// configuration. Deployments must replace it; the server refuses to disable
// auth but logs a loud warning when this value is still in use.
const InsecureAPIKeyDefault = "CHANGE_THIS_TO_A_SECURE_RANDOM_STRING"

// Config is the top-level configuration for PicStash.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Limits        LimitsConfig        `yaml:"limits"`
	Image         ImageConfig         `yaml:"image"`
	Namespaces    []string            `yaml:"namespaces"`
	Storage       StorageConfig       `yaml:"storage"`
	Index         IndexConfig         `yaml:"index"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Domain is the public base URL used when building object URLs,
	// e.g. "https://storage.example.com".
	Domain string `yaml:"domain"`
	// ShutdownTimeout is the graceful shutdown timeout in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// APIKey is the shared secret compared against the X-API-Key header.
	APIKey string `yaml:"api_key"`
}

// LimitsConfig holds admission and upload limits.
type LimitsConfig struct {
	// MaxFileSize is the per-file upload size cap in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxFiles is the per-request file count cap for multi-uploads.
	MaxFiles int `yaml:"max_files"`
	// RateWindow is the trailing rate-limit window in seconds.
	RateWindow int `yaml:"rate_window"`
	// RateMax is the maximum requests admitted per identity per window.
	RateMax int `yaml:"rate_max"`
}

// ImageConfig holds image normalization settings.
type ImageConfig struct {
	// MaxDimension is the bounding box edge in pixels; images larger than
	// this on either axis are scaled down to fit. Never upscales.
	MaxDimension int `yaml:"max_dimension"`
	// JPEGQuality is the re-encode quality factor (1-100).
	JPEGQuality int `yaml:"jpeg_quality"`
	// AllowedTypes is the declared-MIME allow-list for uploads.
	AllowedTypes []string `yaml:"allowed_types"`
}

// StorageConfig holds object storage backend settings.
type StorageConfig struct {
	// Backend is the storage backend type: "local", "memory", "sqlite",
	// "s3", "gcs", or "azure".
	Backend string       `yaml:"backend"`
	Local   LocalConfig  `yaml:"local"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	S3      S3Config     `yaml:"s3"`
	GCS     GCSConfig    `yaml:"gcs"`
	Azure   AzureConfig  `yaml:"azure"`
}

// LocalConfig holds local filesystem storage backend settings.
type LocalConfig struct {
	// RootDir is the base upload directory; each namespace gets a
	// sub-directory beneath it.
	RootDir string `yaml:"root_dir"`
}

// SQLiteConfig holds settings for SQLite-backed storage or indexing.
type SQLiteConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// S3Config holds settings for the S3 gateway storage backend.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	// Prefix is an optional key prefix for all objects in the upstream bucket.
	Prefix string `yaml:"prefix"`
	// EndpointURL overrides the S3 endpoint (for MinIO and friends).
	EndpointURL string `yaml:"endpoint_url"`
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool `yaml:"use_path_style"`
	// AccessKeyID and SecretAccessKey, when both set, override the default
	// AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GCSConfig holds settings for the Google Cloud Storage gateway backend.
type GCSConfig struct {
	Bucket  string `yaml:"bucket"`
	Project string `yaml:"project"`
	Prefix  string `yaml:"prefix"`
}

// AzureConfig holds settings for the Azure Blob Storage gateway backend.
type AzureConfig struct {
	Container string `yaml:"container"`
	// Account is the storage account name, used to build the account URL
	// when AccountURL is empty.
	Account string `yaml:"account"`
	// AccountURL is the full storage account URL.
	AccountURL string `yaml:"account_url"`
	Prefix     string `yaml:"prefix"`
}

// IndexConfig holds upload index settings.
type IndexConfig struct {
	// Engine is the index engine: "sqlite", "memory", or "none".
	Engine string       `yaml:"engine"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig holds observability toggles.
type ObservabilityConfig struct {
	// Metrics controls whether Prometheus collectors are registered and
	// /metrics is served.
	Metrics bool `yaml:"metrics"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. A missing file is not an error: the
// defaults are returned, matching the zero-config behavior of a fresh
// deployment. A malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// NamespaceAllowed reports whether ns is in the configured namespace set.
func (c *Config) NamespaceAllowed(ns string) bool {
	return slices.Contains(c.Namespaces, ns)
}

// TypeAllowed reports whether the declared MIME type is in the allow-list.
func (c *Config) TypeAllowed(mime string) bool {
	return slices.Contains(c.Image.AllowedTypes, mime)
}

// InsecureAPIKey reports whether the configured API key is still the
// shipped placeholder.
func (c *Config) InsecureAPIKey() bool {
	return c.Auth.APIKey == InsecureAPIKeyDefault
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			Domain:          "http://localhost:3001",
			ShutdownTimeout: 30,
		},
		Auth: AuthConfig{
			APIKey: InsecureAPIKeyDefault,
		},
		Limits: LimitsConfig{
			MaxFileSize: 10 << 20,
			MaxFiles:    10,
			RateWindow:  60,
			RateMax:     100,
		},
		Image: ImageConfig{
			MaxDimension: 1200,
			JPEGQuality:  80,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		},
		Namespaces: []string{"posts", "avatars", "reports"},
		Storage: StorageConfig{
			Backend: "local",
			Local: LocalConfig{
				RootDir: "./data/uploads",
			},
			SQLite: SQLiteConfig{
				Path: "./data/objects.db",
			},
		},
		Index: IndexConfig{
			Engine: "sqlite",
			SQLite: SQLiteConfig{
				Path: "./data/index.db",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: true,
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	def := defaultConfig()

	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Domain == "" {
		cfg.Server.Domain = def.Server.Domain
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Auth.APIKey == "" {
		cfg.Auth.APIKey = def.Auth.APIKey
	}
	if cfg.Limits.MaxFileSize == 0 {
		cfg.Limits.MaxFileSize = def.Limits.MaxFileSize
	}
	if cfg.Limits.MaxFiles == 0 {
		cfg.Limits.MaxFiles = def.Limits.MaxFiles
	}
	if cfg.Limits.RateWindow == 0 {
		cfg.Limits.RateWindow = def.Limits.RateWindow
	}
	if cfg.Limits.RateMax == 0 {
		cfg.Limits.RateMax = def.Limits.RateMax
	}
	if cfg.Image.MaxDimension == 0 {
		cfg.Image.MaxDimension = def.Image.MaxDimension
	}
	if cfg.Image.JPEGQuality == 0 {
		cfg.Image.JPEGQuality = def.Image.JPEGQuality
	}
	if len(cfg.Image.AllowedTypes) == 0 {
		cfg.Image.AllowedTypes = def.Image.AllowedTypes
	}
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = def.Namespaces
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Storage.Local.RootDir == "" {
		cfg.Storage.Local.RootDir = def.Storage.Local.RootDir
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = def.Storage.SQLite.Path
	}
	if cfg.Index.Engine == "" {
		cfg.Index.Engine = def.Index.Engine
	}
	if cfg.Index.SQLite.Path == "" {
		cfg.Index.SQLite.Path = def.Index.SQLite.Path
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}
