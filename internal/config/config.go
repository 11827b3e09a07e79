package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/db"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultDatabaseURL = "box_league.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Archive holds the bucket credentials for completed competition snapshots. An empty
// bucket disables archiving.
type Archive struct {
	Bucket          string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (a Archive) Enabled() bool {
	return a.Bucket != ""
}

type Config struct {
	DBDriver    string
	DatabaseURL string
	ServerPort  int
	LogLevel    slog.Level
	// OperationTimeout bounds every request, caller budgets included.
	OperationTimeout   time.Duration
	CORSAllowedOrigins []string
	Archive            Archive

	// Defaults applies to competitions created without settings.
	Defaults competition.Settings
}

// file is the layout of ENGINE_CONFIG_FILE.
type file struct {
	Defaults competition.Settings `yaml:"defaults"`
}

// Load reads the configuration from the environment. A .env file is picked up when
// present, and ENGINE_CONFIG_FILE may point at a YAML file with competition defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		DBDriver:         getEnv("DB_DRIVER", db.DriverSQLite),
		DatabaseURL:      getEnv("DATABASE_URL", defaultDatabaseURL),
		ServerPort:       8080,
		LogLevel:         slog.LevelInfo,
		OperationTimeout: 5 * time.Second,
		Archive: Archive{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			AccountID:       os.Getenv("ARCHIVE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("ARCHIVE_PREFIX", "competitions"),
		},
		Defaults: competition.DefaultSettings(),
	}

	if portStr := os.Getenv("SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
		}
		cfg.ServerPort = port
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
		}
	}

	if timeout := os.Getenv("OPERATION_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid OPERATION_TIMEOUT environment variable: %w", err)
		}
		cfg.OperationTimeout = d
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if path := os.Getenv("ENGINE_CONFIG_FILE"); path != "" {
		defaults, err := LoadDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg.Defaults = *defaults
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefaults reads the defaults block of a YAML file. Keys left out keep their built-in
// values; unknown keys are rejected.
func LoadDefaults(path string) (*competition.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	parsed := file{Defaults: competition.DefaultSettings()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := parsed.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid defaults in %s: %w", path, err)
	}
	return &parsed.Defaults, nil
}

func (c *Config) Validate() error {
	if c.DBDriver != db.DriverSQLite && c.DBDriver != db.DriverPostgres {
		return fmt.Errorf("DB_DRIVER must be %s or %s, got %q", db.DriverSQLite, db.DriverPostgres, c.DBDriver)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive, got %s", c.OperationTimeout)
	}
	if c.Archive.Enabled() && (c.Archive.AccountID == "" || c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "") {
		return fmt.Errorf("ARCHIVE_BUCKET is set but the archive account or credentials are missing")
	}
	return c.Defaults.Validate()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
