// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all recipe-cached service settings.
type Config struct {
	// HTTP
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Redis (durable cache store and call-budget counter)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Image cache
	ImageIndexPath  string `env:"IMAGE_INDEX_PATH" envDefault:"data/image-index.db"`
	ImageMaxEntries int    `env:"IMAGE_MAX_ENTRIES" envDefault:"500"`

	// Blob storage: "fs" or "s3"
	BlobBackend string `env:"BLOB_BACKEND" envDefault:"fs"`
	BlobDir     string `env:"BLOB_DIR" envDefault:"data/blobs"`
	BlobBaseURL string `env:"BLOB_BASE_URL" envDefault:"/blobs"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"recipe-images"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	// Upstream recipe API
	APIClientID     string `env:"RECIPE_API_CLIENT_ID"`
	APIClientSecret string `env:"RECIPE_API_CLIENT_SECRET"`
	APITokenURL     string `env:"RECIPE_API_TOKEN_URL"`
	APIURL          string `env:"RECIPE_API_URL"`
	APIDailyBudget  int    `env:"RECIPE_API_DAILY_BUDGET" envDefault:"5000"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BlobBackend != "fs" && cfg.BlobBackend != "s3" {
		return nil, fmt.Errorf("invalid BLOB_BACKEND %q (want fs or s3)", cfg.BlobBackend)
	}
	return cfg, nil
}
