package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all process-wide settings. It is resolved once at startup and
// read-only afterwards; components receive it (or the fields they need)
// through their constructors.
type Config struct {
	Port             string
	DatabaseURL      string
	JWTSecret        string
	AccessTokenTTL   time.Duration
	GoogleClientID   string
	S3Bucket         string
	AWSRegion        string
	CloudFrontDomain string
	RabbitMQURL      string
	LogLevel         string
}

// Load reads configuration from environment variables via Viper.
func Load() (*Config, error) {
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.AutomaticEnv()

	cfg := &Config{
		Port:             viper.GetString("APP_PORT"),
		DatabaseURL:      viper.GetString("DATABASE_URL"),
		JWTSecret:        viper.GetString("JWT_SECRET"),
		AccessTokenTTL:   time.Duration(viper.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		GoogleClientID:   viper.GetString("GOOGLE_CLIENT_ID"),
		S3Bucket:         viper.GetString("S3_BUCKET"),
		AWSRegion:        viper.GetString("AWS_REGION"),
		CloudFrontDomain: viper.GetString("CLOUDFRONT_DOMAIN"),
		RabbitMQURL:      viper.GetString("RABBITMQ_URL"),
		LogLevel:         viper.GetString("LOG_LEVEL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}
