// Package common provides shared utilities for TickZen
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/tickzen/internal/models"
)

// DefaultMaxPostsPerDay is the hard per-profile daily cap applied when config omits one.
const DefaultMaxPostsPerDay = 20

// Config holds all configuration for TickZen
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Clients     ClientsConfig    `toml:"clients"`
	Publishing  PublishingConfig `toml:"publishing"`
	Logging     LoggingConfig    `toml:"logging"`
	Users       []UserConfig     `toml:"users"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the SurrealDB connection and the local fallback location.
type StorageConfig struct {
	Address      string `toml:"address"`
	Namespace    string `toml:"namespace"`
	Database     string `toml:"database"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	FallbackPath string `toml:"fallback_path"` // BadgerHold directory for the state blob
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD     EODHDConfig     `toml:"eodhd"`
	Gemini    GeminiConfig    `toml:"gemini"`
	WordPress WordPressConfig `toml:"wordpress"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	MinContentWords int    `toml:"min_content_words"`
}

// WordPressConfig holds settings shared by every WordPress site client.
type WordPressConfig struct {
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *WordPressConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// PublishingConfig controls the orchestrator.
type PublishingConfig struct {
	MaxPostsPerDay int    `toml:"max_posts_per_day"`
	PostStatus     string `toml:"post_status"`
	ContentTimeout string `toml:"content_timeout"`
	ImageTimeout   string `toml:"image_timeout"`
	UploadTimeout  string `toml:"upload_timeout"`
	PublishTimeout string `toml:"publish_timeout"`
	LeaseTTL       string `toml:"lease_ttl"`
	Schedule       string `toml:"schedule"`     // cron expression, empty disables scheduled runs
	ProgressLog    string `toml:"progress_log"` // JSONL audit trail of progress events, empty disables
}

// GetContentTimeout returns the bound on a single content generation call.
func (c *PublishingConfig) GetContentTimeout() time.Duration {
	return parseDuration(c.ContentTimeout, 3*time.Minute)
}

// GetImageTimeout returns the bound on feature image rendering.
func (c *PublishingConfig) GetImageTimeout() time.Duration {
	return parseDuration(c.ImageTimeout, 30*time.Second)
}

// GetUploadTimeout returns the bound on a media upload call.
func (c *PublishingConfig) GetUploadTimeout() time.Duration {
	return parseDuration(c.UploadTimeout, 60*time.Second)
}

// GetPublishTimeout returns the bound on a post creation call.
func (c *PublishingConfig) GetPublishTimeout() time.Duration {
	return parseDuration(c.PublishTimeout, 60*time.Second)
}

// GetLeaseTTL returns how long a run lease is held before it may be taken over.
func (c *PublishingConfig) GetLeaseTTL() time.Duration {
	return parseDuration(c.LeaseTTL, 2*time.Hour)
}

// UserConfig binds a user id to the profiles published on their behalf.
type UserConfig struct {
	ID       string                 `toml:"id"`
	Profiles []models.ProfileConfig `toml:"profiles"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:      "ws://localhost:8000/rpc",
			Namespace:    "tickzen",
			Database:     "tickzen",
			Username:     "root",
			Password:     "root",
			FallbackPath: "data/fallback",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Gemini: GeminiConfig{
				Model:           "gemini-2.0-flash",
				MinContentWords: 300,
			},
			WordPress: WordPressConfig{
				RateLimit: 2,
				Timeout:   "60s",
			},
		},
		Publishing: PublishingConfig{
			MaxPostsPerDay: DefaultMaxPostsPerDay,
			PostStatus:     "future",
			ContentTimeout: "3m",
			ImageTimeout:   "30s",
			UploadTimeout:  "60s",
			PublishTimeout: "60s",
			LeaseTTL:       "2h",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Outputs:  []string{"console"},
			FilePath: "./logs/tickzen.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Publishing.MaxPostsPerDay <= 0 {
		config.Publishing.MaxPostsPerDay = DefaultMaxPostsPerDay
	}

	if err := validateUsers(config.Users); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TICKZEN_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TICKZEN_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TICKZEN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TICKZEN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("TICKZEN_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if v := os.Getenv("TICKZEN_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("TICKZEN_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if path := os.Getenv("TICKZEN_DATA_PATH"); path != "" {
		config.Storage.FallbackPath = filepath.Join(path, "fallback")
	}

	if v := os.Getenv("TICKZEN_MAX_POSTS_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Publishing.MaxPostsPerDay = n
		}
	}

	if v := os.Getenv("TICKZEN_SCHEDULE"); v != "" {
		config.Publishing.Schedule = v
	}
}

// validateUsers rejects duplicate user ids and duplicate profile ids within a user.
func validateUsers(users []UserConfig) error {
	seenUsers := make(map[string]bool, len(users))
	for _, u := range users {
		if u.ID == "" {
			return fmt.Errorf("user entry without id")
		}
		if seenUsers[u.ID] {
			return fmt.Errorf("duplicate user id %q", u.ID)
		}
		seenUsers[u.ID] = true

		seenProfiles := make(map[string]bool, len(u.Profiles))
		for _, p := range u.Profiles {
			if seenProfiles[p.ProfileID] {
				return fmt.Errorf("duplicate profile id %q for user %q", p.ProfileID, u.ID)
			}
			seenProfiles[p.ProfileID] = true
		}
	}
	return nil
}

// User returns the configured user with the given id.
func (c *Config) User(id string) (*UserConfig, bool) {
	for i := range c.Users {
		if c.Users[i].ID == id {
			return &c.Users[i], true
		}
	}
	return nil, false
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from the environment, falling back to the configured value.
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":  {"EODHD_API_KEY", "TICKZEN_EODHD_API_KEY"},
		"gemini_api_key": {"GEMINI_API_KEY", "TICKZEN_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
