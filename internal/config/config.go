package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"coinsleuth/internal/errors"
)

// Storage backends for the persistent table store
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config represents the complete application configuration
type Config struct {
	Storage  StorageConfig
	Database DatabaseConfig
	Server   ServerConfig
	Analysis AnalysisConfig
	LogLevel string
}

// StorageConfig controls the statistics store tiers
type StorageConfig struct {
	EnablePersistence   bool
	EnableInMemoryCache bool
	Location            string
	FileName            string
	Backend             string
	TolerateErrors      bool
}

// SQLitePath is the database file of the sqlite backend
func (s StorageConfig) SQLitePath() string {
	return filepath.Join(s.Location, s.FileName)
}

// BadgerPath is the directory of the badger backend, named after the file
// name without its extension
func (s StorageConfig) BadgerPath() string {
	return filepath.Join(s.Location, strings.TrimSuffix(s.FileName, filepath.Ext(s.FileName))+".badger")
}

// DatabaseConfig holds the PostgreSQL connection used by the postgres backend
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// AnalysisConfig holds worker pool settings for sample analysis and sampling runs
type AnalysisConfig struct {
	Workers int
}

// Load reads configuration from environment variables and validates it.
// Callers load .env files beforehand.
func Load() (*Config, error) {
	config := &Config{
		Storage:  loadStorageConfig(),
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Analysis: AnalysisConfig{Workers: getEnvIntOrDefault("SLEUTH_WORKERS", 1)},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		EnablePersistence:   getEnvBoolOrDefault("SLEUTH_USE_DB", true),
		EnableInMemoryCache: getEnvBoolOrDefault("SLEUTH_USE_CACHE", true),
		Location:            getEnvOrDefault("SLEUTH_DB_FOLDER", "data"),
		FileName:            getEnvOrDefault("SLEUTH_DB_FILE", "coinsleuth.db"),
		Backend:             strings.ToLower(getEnvOrDefault("SLEUTH_BACKEND", BackendSQLite)),
		TolerateErrors:      getEnvBoolOrDefault("SLEUTH_TOLERATE_STORAGE_ERRORS", false),
	}
}

// Validate checks a configuration assembled from env vars or CLI flags
func Validate(config *Config) error {
	if config.Analysis.Workers < 1 {
		return errors.ConfigInvalid("SLEUTH_WORKERS must be at least 1")
	}
	if !config.Storage.EnablePersistence {
		return nil
	}
	switch config.Storage.Backend {
	case BackendSQLite, BackendBadger:
		if config.Storage.Location == "" || config.Storage.FileName == "" {
			return errors.ConfigInvalid("storage location and file name are required")
		}
	case BackendPostgres:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres backend")
		}
	default:
		return errors.ConfigInvalid("unknown storage backend " + strconv.Quote(config.Storage.Backend))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
