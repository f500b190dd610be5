package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Reddit   RedditConfig
	Database DatabaseConfig
	Server   ServerConfig
	Download DownloadConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name     string
	Version  string
	DemoMode bool
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID             string
	ClientSecret         string
	UserAgent            string
	Subreddit            string
	PollingInterval      int
	MaxRequestsPerMinute int // value is per minute, multiply by 10 for 10-minute rate
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
}

// DownloadConfig holds image download configuration
type DownloadConfig struct {
	Directory string
}

// LoadConfig loads configuration from .env file
func LoadConfig(envPath string, demoMode bool, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	// In demo mode a missing .env is fine; nothing external is contacted.
	if err := godotenv.Load(envPath); err != nil && !demoMode {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "subwatch"),
			Version:  getEnv("APP_VERSION", "1.0.0"),
			DemoMode: demoMode,
		},
		Reddit: RedditConfig{
			ClientID:             getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:         getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:            getEnv("REDDIT_USER_AGENT", ""),
			Subreddit:            strings.TrimSpace(getEnv("REDDIT_SUBREDDIT", "PhotoshopRequest")),
			PollingInterval:      getEnvAsInt("REDDIT_POLLING_INTERVAL", 30),
			MaxRequestsPerMinute: getEnvAsInt("REDDIT_MAX_REQUESTS_PER_MINUTE", 100),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./subwatch.db"),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Download: DownloadConfig{
			Directory: getEnv("DOWNLOAD_DIR", defaultDownloadDir()),
		},
	}

	// validation
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./downloads"
	}
	return filepath.Join(home, "Downloads", "reddit_photos")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Reddit credentials only matter when we actually talk to Reddit.
	if !config.App.DemoMode {
		if config.Reddit.ClientID == "" {
			return fmt.Errorf("REDDIT_CLIENT_ID environment variable is required")
		}
		if config.Reddit.ClientSecret == "" {
			return fmt.Errorf("REDDIT_CLIENT_SECRET environment variable is required")
		}

		// User-Agent required per API documentation; it has strict requirements.
		if config.Reddit.UserAgent == "" {
			return fmt.Errorf("REDDIT_USER_AGENT environment variable is required")
		}
	}
	if config.Reddit.Subreddit == "" {
		return fmt.Errorf("REDDIT_SUBREDDIT environment variable is required")
	}
	if config.Reddit.PollingInterval < 1 {
		return fmt.Errorf("REDDIT_POLLING_INTERVAL must be positive")
	}

	// if we are storing the db in a nested directory, create the directory
	dbDir := filepath.Dir(config.Database.Path)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
