package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults; nothing in
// here is global. The loaded Config is passed to each component at
// construction.
//
// Environment Variables:
// Catalog (TMDB):
// - TMDB_API_KEY: v3 API key (query-param auth)
// - TMDB_BEARER: v4 read access token (preferred over the key when set)
// - TMDB_API_URL: API base URL (default: https://api.themoviedb.org/3)
// - TMDB_TIMEOUT: request timeout in seconds (default: 20)
//
// Ratings (OMDb, optional):
// - OMDB_API_KEY: OMDb API key; ratings lookups are skipped when empty
// - OMDB_API_URL: API base URL (default: https://www.omdbapi.com/)
//
// Storage:
// - DATA_DIR: directory for the cache database and settings (default: ./data)
// - BACKUP_DIR: directory for database backups (default: ./backups)
//
// Page:
// - OUTPUT_FILE: rendered HTML path (default: <DATA_DIR>/../outputs/shelf.html)
// - TEMPLATE_FILE: optional template override; empty uses the embedded one
//
// Refresh:
// - REFRESH_WORKERS: parallel poster/rating refresh workers (default: 4)
// - REFRESH_CRON: schedule for the watch subcommand (default: "0 6 * * *")
//
// System:
// - LOG_LEVEL: debug|info|warn|error (default: info)
type Config struct {
	Catalog CatalogConfig `json:"catalog"`
	Ratings RatingsConfig `json:"ratings"`
	Storage StorageConfig `json:"storage"`
	Page    PageConfig    `json:"page"`
	Refresh RefreshConfig `json:"refresh"`
	System  SystemConfig  `json:"system"`
}

// CatalogConfig holds the TMDB client configuration.
type CatalogConfig struct {
	APIKey  string `json:"api_key"`
	Bearer  string `json:"bearer"`
	APIURL  string `json:"api_url"`
	Timeout int    `json:"timeout"`
}

// RatingsConfig holds the OMDb client configuration. The key is optional;
// without it the ratings step is skipped rather than failing.
type RatingsConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
}

// StorageConfig holds the cache database locations.
type StorageConfig struct {
	DataDir   string `json:"data_dir"`
	BackupDir string `json:"backup_dir"`
}

// DBPath is the single-file cache database inside the data directory.
func (c StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "shelf.db")
}

// SettingsPath is the persisted runtime settings file.
func (c StorageConfig) SettingsPath() string {
	return filepath.Join(c.DataDir, "settings.json")
}

// PageConfig holds the page generator configuration.
type PageConfig struct {
	OutputFile   string `json:"output_file"`
	TemplateFile string `json:"template_file"`
}

// RefreshConfig holds batch refresh behavior.
type RefreshConfig struct {
	Workers  int    `json:"workers"`
	CronExpr string `json:"cron_expr"`
}

type SystemConfig struct {
	LogLevel string `json:"log_level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Catalog: CatalogConfig{
			APIKey:  getEnvString("TMDB_API_KEY", ""),
			Bearer:  getEnvString("TMDB_BEARER", ""),
			APIURL:  getEnvString("TMDB_API_URL", "https://api.themoviedb.org/3"),
			Timeout: getEnvInt("TMDB_TIMEOUT", 20),
		},
		Ratings: RatingsConfig{
			APIKey: getEnvString("OMDB_API_KEY", ""),
			APIURL: getEnvString("OMDB_API_URL", "https://www.omdbapi.com/"),
		},
		Storage: StorageConfig{
			DataDir:   getEnvString("DATA_DIR", "data"),
			BackupDir: getEnvString("BACKUP_DIR", "backups"),
		},
		Page: PageConfig{
			OutputFile:   getEnvString("OUTPUT_FILE", filepath.Join("outputs", "shelf.html")),
			TemplateFile: getEnvString("TEMPLATE_FILE", ""),
		},
		Refresh: RefreshConfig{
			Workers:  getEnvInt("REFRESH_WORKERS", 4),
			CronExpr: getEnvString("REFRESH_CRON", "0 6 * * *"),
		},
		System: SystemConfig{
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Catalog.APIKey == "" && c.Catalog.Bearer == "" {
		return fmt.Errorf("TMDB_API_KEY or TMDB_BEARER is required")
	}
	if c.Refresh.Workers < 1 {
		return fmt.Errorf("REFRESH_WORKERS must be at least 1")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
