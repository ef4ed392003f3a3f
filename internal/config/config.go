package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the grade monitor.
type Config struct {
	AppName         string
	AppEnv          string
	HTTPPort        string
	DatabaseURL     string
	DatabasePath    string
	SnapshotDir     string
	ChangeLogPath   string
	ChangeLogMaxAge time.Duration
	PollInterval    time.Duration
	RunOnce         bool
}

// HTTPAddress returns the address the ops HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.HTTPPort, ":") {
		return c.HTTPPort
	}

	return fmt.Sprintf(":%s", c.HTTPPort)
}

// UsesPostgres reports whether a PostgreSQL DSN was configured; otherwise
// the embedded SQLite store is used.
func (c Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Gradewatch")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.path", "data/grades.db")
	v.SetDefault("snapshot.dir", "data")
	v.SetDefault("changelog.path", "logs/grade_changes.log")
	v.SetDefault("changelog.max_age", "720h")
	v.SetDefault("poll.interval", "30m")
	v.SetDefault("run.once", false)

	interval, err := time.ParseDuration(v.GetString("poll.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	if interval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive")
	}

	maxAge, err := time.ParseDuration(v.GetString("changelog.max_age"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid change log max age: %w", err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		HTTPPort:        v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		DatabasePath:    v.GetString("database.path"),
		SnapshotDir:     v.GetString("snapshot.dir"),
		ChangeLogPath:   v.GetString("changelog.path"),
		ChangeLogMaxAge: maxAge,
		PollInterval:    interval,
		RunOnce:         v.GetBool("run.once"),
	}

	if cfg.DatabaseURL == "" && cfg.DatabasePath == "" {
		return Config{}, fmt.Errorf("either a database url or a database path must be provided")
	}

	return cfg, nil
}
