package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/webcomputing/assistant-alexa/internal/adapter/inbound/alexa"
	"github.com/webcomputing/assistant-alexa/internal/adapter/inbound/http"
	"github.com/webcomputing/assistant-alexa/internal/adapter/outbound/verifier"
	"github.com/webcomputing/assistant-alexa/internal/config"
	"github.com/webcomputing/assistant-alexa/internal/service"
	"github.com/webcomputing/assistant-alexa/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the assistant-alexa webhook server.

Alexa sends skill requests as HTTPS POSTs to the configured route
(alexa.route, default /alexa). Alexa requires a public HTTPS endpoint, so
run the server behind a TLS-terminating reverse proxy.

Examples:
  # Start with config file settings
  assistant-alexa serve

  # Start in development mode (debug logging, no signature verification)
  assistant-alexa serve --dev

  # Start with a specific config file
  assistant-alexa --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, no signature verification)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(devMode)
	if err != nil {
		return err
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg)
	if cfg.DevMode {
		logger.Warn("development mode enabled, do not use in production")
	}

	// Write PID file so "assistant-alexa stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := serve(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("assistant-alexa stopped")
	return nil
}

// serve wires all components together and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	sigVerifier := verifier.Resolve(cfg.Alexa.UseVerifier, logger,
		verifier.WithTimeout(config.Duration(cfg.Verifier.Timeout, verifier.DefaultTimeout)),
		verifier.WithTolerance(config.Duration(cfg.Verifier.TimestampTolerance, verifier.DefaultTolerance)),
		verifier.WithMeterProvider(otel.GetMeterProvider()),
	)

	platform := alexa.NewPlatform(alexa.ExtractorConfig{
		ApplicationID:    cfg.Alexa.ApplicationID,
		Route:            cfg.Alexa.Route,
		ForcedOAuthToken: cfg.Alexa.ForcedOAuthToken,
	}, sigVerifier, logger)
	if cfg.Alexa.ForcedOAuthToken != "" {
		logger.Warn("forced alexa oauth token configured, every request uses it")
	}

	replies, err := service.NewReplyService(cfg.ReplyRules(), cfg.FallbackReply.Rule(), logger)
	if err != nil {
		return fmt.Errorf("failed to create reply service: %w", err)
	}

	unifier := service.NewUnifier(replies, logger, platform)

	transportOpts := []http.Option{
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithLogger(logger),
		http.WithServiceName(cfg.Telemetry.ServiceName),
		http.WithShutdownTimeout(config.Duration(cfg.Server.ShutdownTimeout, http.DefaultShutdownTimeout)),
		http.WithHealthChecker(http.NewHealthChecker(unifier.Platforms, replies.Len, Version)),
	}
	if cfg.RateLimit.Enabled {
		window := config.Duration(cfg.RateLimit.Window, time.Minute)
		transportOpts = append(transportOpts, http.WithRateLimit(cfg.RateLimit.Requests, window))
		logger.Info("rate limiting enabled", "requests", cfg.RateLimit.Requests, "window", window)
	}

	transport := http.NewHTTPTransport(unifier, transportOpts...)
	logger.Info("webhook ready",
		"addr", cfg.Server.HTTPAddr,
		"route", cfg.Alexa.Route,
		"replies", replies.Len(),
		"verifier", cfg.Alexa.UseVerifier,
	)
	return transport.Start(ctx)
}

// pidFilePath returns the path of the server PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".assistant-alexa", "server.pid")
	}
	return filepath.Join(os.TempDir(), "assistant-alexa-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}
