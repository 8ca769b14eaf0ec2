// Package main is the entry point for the greeting service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shineum/mail-relay-lite/internal/api"
	"github.com/shineum/mail-relay-lite/internal/config"
	"github.com/shineum/mail-relay-lite/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, listen string

	cmd := &cobra.Command{
		Use:           "greeter",
		Short:         "Hello world liveness service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if listen != "" {
				cfg.Greeter.Listen = listen
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides GREETER_LISTEN")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	engine := api.NewEngine(log, cfg.HTTP.Debug)
	api.RegisterGreeting(engine)

	srv := &http.Server{
		Addr:         cfg.Greeter.Listen,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	log.Info("starting greeter", zap.String("listen", cfg.Greeter.Listen))
	if err := api.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, log); err != nil {
		return err
	}
	log.Info("greeter stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
