package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fullnode endpoints per network. SUI_RPC_URL overrides.
var networkURLs = map[string]string{
	"mainnet": "https://fullnode.mainnet.sui.io:443",
	"testnet": "https://fullnode.testnet.sui.io:443",
	"devnet":  "https://fullnode.devnet.sui.io:443",
}

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Stores
	PostgresURL string
	RedisURL    string

	// Chain
	SuiNetwork     string
	SuiRPCURL      string
	PackageID      string
	RegistryID     string
	SponsorSecret  string
	SponsorAddress string
	GasBudget      uint64

	// Queue
	ProcessingInterval time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	GCInterval         time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
// It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		SuiNetwork: getEnv("SUI_NETWORK", "testnet"),
		GasBudget:  uint64(getEnvInt("SUI_GAS_BUDGET", 100_000_000)),

		ProcessingInterval: getEnvDuration("QUEUE_PROCESSING_INTERVAL", 1*time.Second),
		MaxRetries:         getEnvInt("QUEUE_MAX_RETRIES", 3),
		RetryDelay:         getEnvDuration("QUEUE_RETRY_DELAY", 5*time.Second),
		GCInterval:         getEnvDuration("QUEUE_GC_INTERVAL", 1*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	rawOrigins := strings.Split(origins, ",")
	for _, o := range rawOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = getEnvRequired("REDIS_URL"); err != nil {
		return nil, err
	}
	if cfg.PackageID, err = getEnvRequired("SUI_PACKAGE_ID"); err != nil {
		return nil, err
	}
	if cfg.RegistryID, err = getEnvRequired("SUI_REGISTRY_ID"); err != nil {
		return nil, err
	}
	if cfg.SponsorSecret, err = getEnvRequired("SPONSOR_SECRET"); err != nil {
		return nil, err
	}
	// Optional: used only to cross-check the derived sponsor address.
	cfg.SponsorAddress = getEnv("SPONSOR_ADDRESS", "")

	cfg.SuiRPCURL = getEnv("SUI_RPC_URL", "")
	if cfg.SuiRPCURL == "" {
		url, ok := networkURLs[cfg.SuiNetwork]
		if !ok {
			return nil, fmt.Errorf("unknown SUI_NETWORK %q and no SUI_RPC_URL override", cfg.SuiNetwork)
		}
		cfg.SuiRPCURL = url
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
