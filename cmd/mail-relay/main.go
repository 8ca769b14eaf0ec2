// Package main is the entry point for the mail relay HTTP service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shineum/mail-relay-lite/internal/api"
	"github.com/shineum/mail-relay-lite/internal/certificate"
	"github.com/shineum/mail-relay-lite/internal/compose"
	"github.com/shineum/mail-relay-lite/internal/config"
	"github.com/shineum/mail-relay-lite/internal/logging"
	"github.com/shineum/mail-relay-lite/internal/metrics"
	"github.com/shineum/mail-relay-lite/internal/provider"
	"github.com/shineum/mail-relay-lite/internal/provider/graph"
	"github.com/shineum/mail-relay-lite/internal/provider/relay"
	"github.com/shineum/mail-relay-lite/internal/provider/ses"
	"github.com/shineum/mail-relay-lite/internal/provider/stdout"
	mtls "github.com/shineum/mail-relay-lite/internal/tls"
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
		Use:           "mail-relay",
		Short:         "HTTP to SMTP mail relay",
		Long:          `Accepts send-email requests over HTTP and delivers them through an upstream SMTP relay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if listen != "" {
				cfg.HTTP.Listen = listen
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides HTTP_LISTEN")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	prov, err := selectProvider(ctx, cfg, log)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, prov, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	log.Info("starting mail-relay",
		zap.String("listen", cfg.HTTP.Listen),
		zap.String("provider", prov.Name()),
		zap.Int("max_concurrent_sends", cfg.HTTP.MaxConcurrentSends),
	)

	if err := api.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, log); err != nil {
		return err
	}

	log.Info("mail-relay stopped")
	return nil
}

// newEngine wires the send-email and certificate endpoints, the liveness
// endpoint and /metrics onto one engine.
func newEngine(cfg *config.Config, prov provider.Provider, log *zap.Logger) (*gin.Engine, error) {
	renderer, err := certificate.NewRenderer(certificate.Options{
		AssetsDir: cfg.Certificate.AssetsDir,
		FontFile:  cfg.Certificate.FontFile,
	})
	if err != nil {
		return nil, err
	}
	store, err := certificate.NewStore(cfg.Certificate.OutputDir, cfg.Certificate.PublicURL)
	if err != nil {
		return nil, err
	}

	engine := api.NewEngine(log, cfg.HTTP.Debug)
	api.RegisterGreeting(engine)
	mail := api.NewMailHandler(prov, compose.Defaults{
		Subject:   cfg.Mail.DefaultSubject,
		Message:   cfg.Mail.DefaultMessage,
		Signature: cfg.Mail.Signature,
		From:      cfg.Sender(),
		FromName:  cfg.Relay.FromName,
	}, cfg.HTTP.MaxConcurrentSends, log)
	mail.Register(engine)
	api.NewCertificateHandler(mail, renderer, store, log).Register(engine)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	return engine, nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// selectProvider builds the delivery backend named by cfg.Provider.
func selectProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderSMTP:
		tlsCfg, err := mtls.ClientConfig(cfg.Relay.Host, cfg.Relay.CAFile, cfg.Relay.InsecureSkipVerify)
		if err != nil {
			return nil, fmt.Errorf("failed to set up relay TLS: %w", err)
		}
		if cfg.Relay.InsecureSkipVerify {
			log.Warn("relay certificate verification is disabled")
		}
		p := relay.New(relay.Config{
			Host:      cfg.Relay.Host,
			Port:      cfg.Relay.Port,
			Username:  cfg.Relay.Username,
			Password:  cfg.Relay.Password,
			From:      cfg.Sender(),
			LocalName: cfg.Relay.LocalName,
			Timeout:   cfg.Relay.Timeout,
			TLSConfig: tlsCfg,
		})
		log.Info("using SMTP relay provider",
			zap.String("relay", p.Addr()),
			zap.String("sender", cfg.Sender()),
		)
		return p, nil

	case config.ProviderSES:
		log.Info("using AWS SES provider",
			zap.String("region", cfg.SES.Region),
			zap.String("sender", cfg.SES.Sender),
		)
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case config.ProviderGraph:
		log.Info("using Microsoft Graph provider",
			zap.String("tenant_id", cfg.Graph.TenantID),
			zap.String("sender", cfg.Graph.Sender),
		)
		return graph.New(graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
		}), nil

	case config.ProviderStdout:
		log.Info("using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
