// config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode           string
	Port           string
	DatabaseURL    string
	GatewayToken   string
	AllowedOrigins []string

	AssetReindexInterval time.Duration
	StepCloneBatchSize   int

	R2 R2Config
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// Endpoint overrides the account endpoint, e.g. for a local S3-compatible store.
	Endpoint string
}

// EndpointURL is the S3 API endpoint of the bucket's account.
func (c R2Config) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// Enabled reports whether enough is configured to probe the asset bucket.
func (c R2Config) Enabled() bool {
	return c.Bucket != "" && c.AccountID != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Mode:         getEnv("APP_MODE", "dev"),
		Port:         getEnv("PORT", "5200"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		GatewayToken: os.Getenv("GATEWAY_SERVICE_TOKEN"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			Endpoint:        os.Getenv("R2_ENDPOINT"),
		},
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	interval, err := time.ParseDuration(getEnv("ASSET_REINDEX_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ASSET_REINDEX_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ASSET_REINDEX_INTERVAL must be positive, got %s", interval)
	}
	cfg.AssetReindexInterval = interval

	batch, err := strconv.Atoi(getEnv("STEP_CLONE_BATCH_SIZE", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid STEP_CLONE_BATCH_SIZE: %w", err)
	}
	if batch <= 0 {
		return nil, fmt.Errorf("STEP_CLONE_BATCH_SIZE must be positive, got %d", batch)
	}
	cfg.StepCloneBatchSize = batch

	return cfg, nil
}

// RequireDatabase fails when no DSN is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return nil
}

// RequireServe checks what the HTTP server needs on top of the database.
func (c *Config) RequireServe() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if c.GatewayToken == "" {
		return fmt.Errorf("GATEWAY_SERVICE_TOKEN environment variable not set")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
