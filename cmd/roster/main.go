// Package main starts the roster service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	rostercmd "github.com/louisbranch/roster/internal/cmd/roster"
	"github.com/louisbranch/roster/internal/platform/config"
	"github.com/louisbranch/roster/internal/platform/logging"
)

var version = "dev"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		config.Exitf("load env: %v", err)
	}
	cfg, err := rostercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	cfg.Server.Version = version

	// stdout belongs to the stdio transport and to -issue-token.
	logger := logging.New(os.Stderr, "roster", cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rostercmd.Run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("roster exited")
		stop()
		os.Exit(1)
	}
}
