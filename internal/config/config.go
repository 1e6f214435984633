package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	Environment   string
	Database      DatabaseConfig
	ERP           ERPConfig
	Marketplace   MarketplaceConfig
	Sync          SyncConfig
	LogLevel      string
	WebhookSecret string // ERP_WEBHOOK_SECRET: shared token for POST /webhooks/erp/stock; empty disables the check
}

// ERPConfig is used to call the inventory system (M1) REST API
type ERPConfig struct {
	BaseURL string // e.g. http://erp:8080
	Token   string // ERP_API_TOKEN
}

// MarketplaceConfig is used to call the marketplace (M2) REST API
type MarketplaceConfig struct {
	BaseURL string // e.g. https://api.marketplace.example
	Token   string // MARKETPLACE_API_TOKEN
}

// SyncConfig drives the scheduler and the mapping store. Validated once at
// startup, immutable afterwards.
type SyncConfig struct {
	StockInterval        time.Duration
	OrderPollInterval    time.Duration
	ShipmentPollInterval time.Duration
	MappingFile          string // path of the persisted mapping document
	MaxAttempts          int    // bounded retry for external calls during stock sync
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STOCK_SYNC_INTERVAL", "5m")
	viper.SetDefault("ORDER_POLL_INTERVAL", "2m")
	viper.SetDefault("SHIPMENT_POLL_INTERVAL", "10m")
	viper.SetDefault("MAPPING_FILE", "data/mappings.json")
	viper.SetDefault("SYNC_MAX_ATTEMPTS", "3")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	stockInterval, err := time.ParseDuration(getEnvOrViper("STOCK_SYNC_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STOCK_SYNC_INTERVAL: %w", err)
	}
	orderInterval, err := time.ParseDuration(getEnvOrViper("ORDER_POLL_INTERVAL", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORDER_POLL_INTERVAL: %w", err)
	}
	shipmentInterval, err := time.ParseDuration(getEnvOrViper("SHIPMENT_POLL_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHIPMENT_POLL_INTERVAL: %w", err)
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "m2middleware"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		ERP: ERPConfig{
			BaseURL: strings.TrimSpace(getEnvOrViper("ERP_BASE_URL", "")),
			Token:   strings.TrimSpace(getEnvOrViper("ERP_API_TOKEN", "")),
		},
		Marketplace: MarketplaceConfig{
			BaseURL: strings.TrimSpace(getEnvOrViper("MARKETPLACE_BASE_URL", "")),
			Token:   strings.TrimSpace(getEnvOrViper("MARKETPLACE_API_TOKEN", "")),
		},
		Sync: SyncConfig{
			StockInterval:        stockInterval,
			OrderPollInterval:    orderInterval,
			ShipmentPollInterval: shipmentInterval,
			MappingFile:          getEnvOrViper("MAPPING_FILE", "data/mappings.json"),
			MaxAttempts:          viper.GetInt("SYNC_MAX_ATTEMPTS"),
		},
		LogLevel:      getEnvOrViper("LOG_LEVEL", "info"),
		WebhookSecret: strings.TrimSpace(getEnvOrViper("ERP_WEBHOOK_SECRET", "")),
	}

	// Validate required fields
	if cfg.ERP.BaseURL == "" {
		return nil, fmt.Errorf("ERP_BASE_URL is required")
	}
	if cfg.ERP.Token == "" {
		return nil, fmt.Errorf("ERP_API_TOKEN is required")
	}
	if cfg.Marketplace.BaseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_BASE_URL is required")
	}
	if cfg.Marketplace.Token == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_TOKEN is required")
	}
	if cfg.Sync.MappingFile == "" {
		return nil, fmt.Errorf("MAPPING_FILE is required")
	}
	if cfg.Sync.StockInterval <= 0 || cfg.Sync.OrderPollInterval <= 0 || cfg.Sync.ShipmentPollInterval <= 0 {
		return nil, fmt.Errorf("sync intervals must be positive")
	}
	if cfg.Sync.MaxAttempts < 1 {
		cfg.Sync.MaxAttempts = 3
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
