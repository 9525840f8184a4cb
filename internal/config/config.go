package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the process configuration
type Config struct {
	AdminPort      int
	APIKey         string
	TrustedProxies []string
	LogLevel       string
	LogFormat      string
	LogDir         string
	ServiceName    string
	Version        string
	Environment    string
	DataDir        string
	GameConfig     string // path to the game table YAML (merged over defaults)
	TickMs         int    // task loop base tick
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:      getEnv("API_KEY", ""),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		LogDir:      getEnv("LOG_DIR", "logs"),
		ServiceName: getEnv("SERVICE_NAME", "farm-core"),
		Version:     getEnv("VERSION", "dev"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		DataDir:     getEnv("DATA_DIR", "data"),
		GameConfig:  getEnv("GAME_CONFIG", "configs/game.yaml"),
	}

	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		for _, p := range strings.Split(proxies, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TrustedProxies = append(cfg.TrustedProxies, p)
			}
		}
	}

	port, err := strconv.Atoi(getEnv("ADMIN_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_PORT value: %w", err)
	}
	cfg.AdminPort = port

	tick, err := strconv.Atoi(getEnv("TICK_MS", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_MS value: %w", err)
	}
	cfg.TickMs = tick

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
