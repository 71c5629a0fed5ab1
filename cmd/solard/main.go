// Package main provides solard, a minimal daemon that opens the feed
// store and blocks until it is asked to shut down. It has no network
// stack and no RPC server; those remain external collaborators.
package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/solar-social/solar/internal/broker"
	"github.com/solar-social/solar/internal/config"
	"github.com/solar-social/solar/internal/identity"
	"github.com/solar-social/solar/internal/store"
	"github.com/solar-social/solar/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.solar", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString("solard " + version + " (commit: " + commit + ")\n")
		os.Exit(0)
	}

	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	configPath := *configFile
	if configPath == "" {
		configPath = filepath.Join(expandDataDir(*dataDir), "config.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)
	log.Info("config loaded", "data_dir", cfg.DataDirPath())

	kp, err := identity.Load(cfg.IdentityKeyPath())
	if err != nil {
		log.Fatal("failed to load identity", "error", err)
	}
	log.Info("identity ready", "id", kp.ID())

	hub := broker.NewHub()

	s, err := store.Open(store.Config{Path: cfg.DatabasePath()}, hub)
	if err != nil {
		log.Fatal("failed to open feed store", "error", err)
	}
	log.Info("feed store opened", "path", cfg.DatabasePath())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("shutting down")

	if err := s.Close(); err != nil {
		log.Error("error closing feed store", "error", err)
	}
}

func expandDataDir(dataDir string) string {
	if len(dataDir) > 0 && dataDir[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, dataDir[1:])
		}
	}
	return dataDir
}
