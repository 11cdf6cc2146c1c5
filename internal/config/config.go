// Package config loads service configuration: defaults, then an optional
// YAML file, then environment variables, each layer overriding the last.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"cors_origin"`

	DataDir     string `yaml:"data_dir"`
	ResultsDir  string `yaml:"results_dir"`
	DatabaseURL string `yaml:"database_url"`

	RedisURL   string        `yaml:"redis_url"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	MeiliURL       string `yaml:"meili_url"`
	MeiliMasterKey string `yaml:"meili_master_key"`

	ArchiveResults bool   `yaml:"archive_results"`
	ArchiveDir     string `yaml:"archive_dir"`

	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`
}

func defaults() Config {
	return Config{
		Addr:        ":8790",
		CORSOrigin:  "*",
		DataDir:     "./data",
		ResultsDir:  "./data/results",
		ArchiveDir:  "./data/archive",
		SessionTTL:  12 * time.Hour,
		MinioBucket: "fomcval-results",
	}
}

// Load builds the configuration. FOMCVAL_CONFIG names an optional YAML
// file; environment variables win over both it and the defaults.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("FOMCVAL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Addr = getenv("API_ADDR", cfg.Addr)
	cfg.CORSOrigin = getenv("FOMCVAL_CORS_ORIGIN", cfg.CORSOrigin)
	cfg.DataDir = getenv("FOMCVAL_DATA_DIR", cfg.DataDir)
	cfg.ResultsDir = getenv("FOMCVAL_RESULTS_DIR", cfg.ResultsDir)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.SessionTTL = time.Duration(getenvInt("FOMCVAL_SESSION_TTL_SECONDS", int(cfg.SessionTTL/time.Second))) * time.Second
	cfg.MeiliURL = getenv("MEILI_URL", cfg.MeiliURL)
	cfg.MeiliMasterKey = getenv("MEILI_MASTER_KEY", cfg.MeiliMasterKey)
	cfg.ArchiveResults = getenvBool("FOMCVAL_ARCHIVE_RESULTS", cfg.ArchiveResults)
	cfg.ArchiveDir = getenv("FOMCVAL_ARCHIVE_DIR", cfg.ArchiveDir)
	cfg.MinioEndpoint = getenv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getenv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getenv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getenv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioUseSSL = getenvBool("MINIO_USE_SSL", cfg.MinioUseSSL)

	return cfg, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
