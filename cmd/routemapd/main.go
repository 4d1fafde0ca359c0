// Package main is the entry point for the route mapping daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatewaylab/routemap/internal/config"
	"github.com/gatewaylab/routemap/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	listen      string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	if flags.listen != "" {
		cfg.Server.Listen = flags.listen
	}

	app := initApplication(cfg, logger)

	runServer(app, cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("ROUTEMAP_CONFIG_PATH", "configs/routemap.yaml"),
		"Path to route table file")
	logLevel := flag.String("log-level", getEnvOrDefault("ROUTEMAP_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("ROUTEMAP_LOG_FORMAT", "json"),
		"Log format (json, console)")
	listen := flag.String("listen", os.Getenv("ROUTEMAP_LISTEN"),
		"Listen address (overrides the route table)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		listen:      *listen,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("routemapd version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the route table.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.RouteTable {
	logger.Info("starting routemapd",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	resolved, err := config.ResolveConfigPath(configPath)
	if err != nil {
		logger.Fatal("route table not found", observability.Error(err))
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		logger.Fatal("failed to load route table", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid route table", observability.Error(err))
	}

	logger.Info("route table loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("url_mappings", len(cfg.URLMap)),
	)

	return cfg
}

// runServer runs the HTTP server and handles reload and shutdown.
func runServer(app *application, cfg *config.RouteTable, configPath string, logger observability.Logger) {
	server := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      app.buildHTTPHandler(cfg.Server.MetricsPath),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", observability.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(server, watcher, cfg.Server.ShutdownTimeout.Duration(), errCh, logger)
}

// startConfigWatcher starts the route table watcher for hot reload.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.RouteTable) {
		logger.Info("route table changed, reloading")
		if reloadErr := app.applyRouteTable(newCfg); reloadErr != nil {
			logger.Error("failed to apply route table", observability.Error(reloadErr))
		}
	}, config.WithWatcherLogger(logger))

	if err != nil {
		logger.Warn("failed to create route table watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start route table watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal or server failure and
// performs graceful shutdown.
func waitForShutdown(
	server *http.Server,
	watcher *config.Watcher,
	timeout time.Duration,
	errCh <-chan error,
	logger observability.Logger,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed", observability.Error(err))
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	logger.Info("routemapd stopped")
}
