package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/coachlead/leadview/internal/config"
	"github.com/coachlead/leadview/internal/db"
	"github.com/coachlead/leadview/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	watcherDebounce = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
	redisPingWait   = 3 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "seed":
			runSeed(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("leadview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`leadview %s - lead analytics API for coaching institutes

Serves per-workspace dashboards (lead time series, key metrics,
campaign and source breakdowns, call, revenue and task analytics)
over a JSON HTTP API backed by SQLite or Postgres.

Usage:
  leadview [flags]          Start the server (default command)
  leadview serve [flags]    Start the server (explicit)
  leadview seed [flags]     Generate demo data for a workspace
  leadview version          Show version information
  leadview help             Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8080)
  -db-driver string   sqlite3 or postgres (default "sqlite3")
  -db-dsn string      Database file path or connection URL
  -redis-url string   Redis URL for bearer-token sessions
  -log-level string   Log level (default "info")

Seed flags:
  -workspace string   Workspace to seed (required)
  -name string        Workspace display name
  -days int           Days of history to generate (default 30)
  -leads-per-day int  Average new leads per day (default 8)
  -seed uint          Random seed (default 1)

Environment variables:
  LEADVIEW_DATA_DIR        Data directory (database, config)
  LEADVIEW_DB_DRIVER       Database driver
  LEADVIEW_DB_DSN          Database DSN
  LEADVIEW_REDIS_URL       Redis URL
  LEADVIEW_LOG_LEVEL       Log level
  LEADVIEW_LOG_FORMAT      text or json
  LEADVIEW_WRITE_TIMEOUT   Per-request handler timeout
  LEADVIEW_CORS_ORIGINS    Comma-separated allowed origins

Data is stored in ~/.leadview/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	logger := mustConfigureLogger(cfg)

	database := mustOpenDB(cfg)
	defer database.Close()

	rdb, err := openRedis(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Fatal("connecting to redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	stopWatcher := startConfigWatcher(cfg, logger)
	defer stopWatcher()

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		logger.Warnf("Port %d in use, using %d", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, database,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
		server.WithRedis(rdb),
		server.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
		}
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("leadview", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: leadview [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		logrus.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logrus.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustConfigureLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	if err := cfg.ConfigureLogger(logger); err != nil {
		logrus.Fatalf("configuring logger: %v", err)
	}
	return logger
}

func mustOpenDB(cfg config.Config) *db.DB {
	database, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN())
	if err != nil {
		logrus.Fatalf("opening database: %v", err)
	}
	return database
}

// openRedis connects to the session store, or returns nil when
// no URL is configured.
func openRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisPingWait)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// startConfigWatcher applies log level changes from the config
// file without a restart.
func startConfigWatcher(
	cfg config.Config, logger *logrus.Logger,
) func() {
	path := cfg.Path()
	onChange := func(string) {
		level, err := config.ReloadLogLevel(path)
		if err != nil {
			logger.WithError(err).Warn("reloading log level")
			return
		}
		if level != logger.GetLevel() {
			logger.SetLevel(level)
			logger.Infof("Log level set to %s", level)
		}
	}
	watcher, err := config.NewWatcher(
		path, watcherDebounce, logger, onChange,
	)
	if err != nil {
		logger.WithError(err).Warn("config watcher unavailable")
		return func() {}
	}
	watcher.Start()
	return watcher.Stop
}
