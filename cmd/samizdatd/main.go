// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/samizdat/pkg/config"
	"github.com/luxfi/samizdat/pkg/log"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration")
	apiListen  = flag.String("listen", "", "API listen address (overrides config)")
	adminAddr  = flag.String("admin-listen", "", "Admin listen address (overrides config)")
	backend    = flag.String("storage", "", "Storage backend: memory, badger, bolt, postgres (overrides config)")
	dataPath   = flag.String("data-path", "", "Badger directory or bolt file (overrides config)")
	dsn        = flag.String("dsn", "", "Postgres DSN (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level (overrides config)")

	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	fmt.Printf("samizdatd %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewWithLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	node, err := NewNode(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to create node", log.Error(err))
	}
	if err := node.Start(); err != nil {
		logger.Fatal("failed to start node", log.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", log.String("signal", sig.String()))
	case err := <-node.Errors():
		logger.Error("server failed", log.Error(err))
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := node.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", log.Error(err))
	}
	logger.Info("daemon stopped")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	overrides := []struct {
		flag string
		dst  *string
	}{
		{*apiListen, &cfg.API.Listen},
		{*adminAddr, &cfg.Admin.Listen},
		{*backend, &cfg.Storage.Backend},
		{*dataPath, &cfg.Storage.Path},
		{*dsn, &cfg.Storage.DSN},
		{*logLevel, &cfg.Log.Level},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}
	return cfg, cfg.Finalize()
}
