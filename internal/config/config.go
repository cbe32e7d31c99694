package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the data directory.
const FileName = "config.yaml"

// Environment variable names.
const (
	EnvDataDir      = "LEADVIEW_DATA_DIR"
	EnvHost         = "LEADVIEW_HOST"
	EnvPort         = "LEADVIEW_PORT"
	EnvDBDriver     = "LEADVIEW_DB_DRIVER"
	EnvDBDSN        = "LEADVIEW_DB_DSN"
	EnvRedisURL     = "LEADVIEW_REDIS_URL"
	EnvLogLevel     = "LEADVIEW_LOG_LEVEL"
	EnvLogFormat    = "LEADVIEW_LOG_FORMAT"
	EnvWriteTimeout = "LEADVIEW_WRITE_TIMEOUT"
	EnvCORSOrigins  = "LEADVIEW_CORS_ORIGINS"
)

// Config holds all application configuration.
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	DataDir      string        `yaml:"-"`
	DBDriver     string        `yaml:"db_driver"`
	DBDSN        string        `yaml:"db_dsn"`
	RedisURL     string        `yaml:"redis_url"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		DataDir:      filepath.Join(home, ".leadview"),
		DBDriver:     "sqlite3",
		LogLevel:     "info",
		LogFormat:    "text",
		WriteTimeout: 30 * time.Second,
		CORSOrigins:  []string{"*"},
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, cfg.Validate()
}

// LoadMinimal builds a Config from defaults, the config file and
// env, without parsing CLI flags. Use this for subcommands that
// manage their own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	// .env never overrides variables already in the environment.
	if err := loadDotEnv(".env", filepath.Join(cfg.DataDir, ".env")); err != nil {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Path returns the config file location.
func (c *Config) Path() string {
	return filepath.Join(c.DataDir, FileName)
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	// Decode over the current values so absent keys keep
	// their defaults.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(EnvWriteTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvWriteTimeout, err)
		}
		c.WriteTimeout = d
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

// DatabaseDSN returns the configured DSN, defaulting the SQLite
// file into the data directory.
func (c *Config) DatabaseDSN() string {
	if c.DBDSN == "" && (c.DBDriver == "" || c.DBDriver == "sqlite3") {
		return filepath.Join(c.DataDir, "leadview.db")
	}
	return c.DBDSN
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.DBDriver {
	case "", "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported db_driver %q", c.DBDriver))
	}
	if c.DBDriver == "postgres" && c.DBDSN == "" {
		errs = append(errs, errors.New("db_dsn is required for postgres"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log_format %q", c.LogFormat))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ConfigureLogger applies the level and format to l.
func (c *Config) ConfigureLogger(l *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	l.SetLevel(level)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	fs.String("db-driver", "sqlite3", "Database driver (sqlite3 or postgres)")
	fs.String("db-dsn", "", "Database file path or connection URL")
	fs.String("redis-url", "", "Redis URL for session lookup")
	fs.String("log-level", "info", "Log level")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "db-driver":
			cfg.DBDriver = f.Value.String()
		case "db-dsn":
			cfg.DBDSN = f.Value.String()
		case "redis-url":
			cfg.RedisURL = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		}
	})
}

// ResolveDataDir returns the effective data directory by applying
// defaults and environment overrides, without reading any files.
func ResolveDataDir() (string, error) {
	cfg, err := Default()
	if err != nil {
		return "", err
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	return cfg.DataDir, nil
}

// ReloadLogLevel re-reads the log level from the config file at
// path, leaving env overrides in force.
func ReloadLogLevel(path string) (logrus.Level, error) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		return logrus.ParseLevel(v)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var file struct {
		LogLevel string `yaml:"log_level"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing config: %w", err)
	}
	if file.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(file.LogLevel)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
