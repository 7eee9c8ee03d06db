package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the server configuration
type Config struct {
	Port              string        `validate:"required,numeric"`
	Env               string        `validate:"oneof=development production test"`
	DBPath            string        `validate:"required"`
	MonitorURL        string        `validate:"required,url"`
	PollInterval      time.Duration `validate:"gt=0"`
	FetchTimeout      time.Duration `validate:"gt=0"`
	RetentionPeriod   time.Duration `validate:"gt=0"`
	ClusterConfigPath string
	RequireAuth       bool
	AppKey            string
}

const (
	defaultPort              = "8080"
	defaultEnv               = "development"
	defaultDBPath            = "./clusterview.db"
	defaultMonitorURL        = "http://127.0.0.1:8265"
	defaultPollInterval      = 2 * time.Second
	defaultFetchTimeout      = 5 * time.Second
	defaultRetentionPeriod   = 24 * time.Hour
	defaultClusterConfigPath = "~/ray_bootstrap_config.yaml"
)

var validate = validator.New()

// Load reads .env (when present) and the environment, then validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] Ignoring unreadable .env file: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", defaultPort),
		Env:               getEnv("ENV", defaultEnv),
		DBPath:            getEnv("DB_PATH", defaultDBPath),
		MonitorURL:        strings.TrimRight(getEnv("MONITOR_URL", defaultMonitorURL), "/"),
		ClusterConfigPath: expandHome(getEnv("CLUSTER_CONFIG_PATH", defaultClusterConfigPath)),
		AppKey:            os.Getenv("APP_KEY"),
	}

	var err error
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", defaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getDuration("FETCH_TIMEOUT", defaultFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.RetentionPeriod, err = getDuration("RETENTION_PERIOD", defaultRetentionPeriod); err != nil {
		return nil, err
	}
	if cfg.RequireAuth, err = getBool("REQUIRE_AUTH", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
