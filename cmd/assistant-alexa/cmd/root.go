// Package cmd provides the CLI commands for assistant-alexa.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webcomputing/assistant-alexa/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "assistant-alexa",
	Short: "assistant-alexa - Alexa skill webhook server",
	Long: `assistant-alexa answers Alexa skill requests.

It verifies and unpacks requests sent by Alexa, matches them against
configured replies, and writes Alexa response envelopes. It also generates
interaction models from an intents file and deploys them with the ask CLI.

Quick start:
  1. Create a config file: assistant-alexa.yaml
  2. Run: assistant-alexa serve

Configuration:
  Config is loaded from assistant-alexa.yaml in the current directory,
  $HOME/.assistant-alexa/, or /etc/assistant-alexa/.

  Environment variables can override config values with the ASSISTANT_ALEXA_ prefix.
  Example: ASSISTANT_ALEXA_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the webhook server
  stop        Stop the running server
  generate    Generate Alexa interaction models
  deploy      Deploy interaction models with the ask CLI
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./assistant-alexa.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// loadConfig loads and validates the configuration. devMode overrides the
// configured dev_mode before dev defaults apply.
func loadConfig(devMode bool) (*config.AppConfig, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. Dev mode always forces debug.
func newLogger(cfg *config.AppConfig) *slog.Logger {
	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
