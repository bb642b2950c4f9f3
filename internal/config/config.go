package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSAddress            string
	EventSubject           string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ProgressCacheTTL       time.Duration
	SequentialThreshold    float64
	AcceptanceThreshold    float64
	HashBits               int
	SubmissionRateLimit    int
	SubmissionRateWindow   time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("WORKBOOK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Workbook API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "workbook/pages")
	v.SetDefault("event.subject", "workbook.reconcile")
	v.SetDefault("progress.cache_ttl", "2m")
	v.SetDefault("match.sequential_threshold", 0.5)
	v.SetDefault("match.acceptance_threshold", 0.7)
	v.SetDefault("match.hash_bits", 64)
	v.SetDefault("submission.rate_limit", 20)
	v.SetDefault("submission.rate_window", "1m")

	ttlString := v.GetString("progress.cache_ttl")
	if ttlString == "" {
		ttlString = "2m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress cache ttl: %w", err)
	}

	windowString := v.GetString("submission.rate_window")
	if windowString == "" {
		windowString = "1m"
	}

	window, err := time.ParseDuration(windowString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid submission rate window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSAddress:            v.GetString("nats.address"),
		EventSubject:           v.GetString("event.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ProgressCacheTTL:       ttl,
		SequentialThreshold:    v.GetFloat64("match.sequential_threshold"),
		AcceptanceThreshold:    v.GetFloat64("match.acceptance_threshold"),
		HashBits:               v.GetInt("match.hash_bits"),
		SubmissionRateLimit:    v.GetInt("submission.rate_limit"),
		SubmissionRateWindow:   window,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SequentialThreshold <= 0 || cfg.SequentialThreshold > 1 {
		cfg.SequentialThreshold = 0.5
	}

	if cfg.AcceptanceThreshold <= 0 || cfg.AcceptanceThreshold > 1 {
		cfg.AcceptanceThreshold = 0.7
	}

	if cfg.HashBits <= 0 {
		cfg.HashBits = 64
	}

	return cfg, nil
}
