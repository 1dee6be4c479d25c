package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string   `env:"DATABASE_URL"`
	Port               string   `env:"PORT" envDefault:"8080"`
	GoEnv              string   `env:"GO_ENV" envDefault:"development"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	Auth0Domain   string `env:"AUTH0_DOMAIN"`
	Auth0Audience string `env:"AUTH0_AUDIENCE"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSS3Bucket        string `env:"AWS_S3_BUCKET"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	// OpenAI-compatible chat completion endpoint used for symptom triage
	LLMBaseURL      string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com"`
	LLMAPIKey       string `env:"OPENAI_API_KEY"`
	LLMModel        string `env:"LLM_MODEL" envDefault:"gpt-4.1-mini"`
	LLMSystemPrompt string `env:"LLM_SYSTEM_PROMPT" envDefault:"You are an experienced car mechanic who helps drivers diagnose problems with their vehicle."`
	LLMTimeoutSec   int    `env:"LLM_TIMEOUT_SECONDS" envDefault:"30"`

	// Per client IP limit on the public AI endpoints, 0 disables it
	AIRateLimitPerMinute int `env:"AI_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	AIRateLimitBurst     int `env:"AI_RATE_LIMIT_BURST" envDefault:"5"`

	RedisURL        string   `env:"REDIS_URL"`
	SearchCacheTTL  int      `env:"SEARCH_CACHE_TTL_SECONDS" envDefault:"60"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaNotifTopic string   `env:"KAFKA_NOTIFICATIONS_TOPIC" envDefault:"notifications"`
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", goEnv)
	if err := godotenv.Load(envFile); err != nil {
		// In production, environment variables are set directly
		// so it's okay if .env files don't exist
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = cfg
	return cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && !c.IsTest() {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.LLMTimeoutSec <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// GetConfig returns the configuration loaded by Load
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// UsesS3 reports whether workshop photos should go to S3 rather than local disk
func (c *Config) UsesS3() bool {
	return c.AWSS3Bucket != ""
}
