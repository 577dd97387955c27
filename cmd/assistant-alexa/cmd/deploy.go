package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/webcomputing/assistant-alexa/internal/adapter/outbound/askcli"
	"github.com/webcomputing/assistant-alexa/internal/config"
	"github.com/webcomputing/assistant-alexa/internal/service"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy interaction models with the ask CLI",
	Long: `Deploy generated interaction models to the skill.

Reads <generator.build_dir>/alexa/schema_<lang>.json (run "generate" first),
adds missing locales to the skill manifest, uploads every model and waits
until Alexa finished training it. Requires the ask CLI (1.6.2 or newer),
initialized with "ask init".

Examples:
  assistant-alexa generate && assistant-alexa deploy`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	runner := askcli.NewRunner(config.Duration(cfg.Deploy.CommandTimeout, askcli.DefaultCommandTimeout), logger)
	deployment := service.NewDeploymentService(service.DeploymentConfig{
		ApplicationID:  cfg.Alexa.ApplicationID,
		InvocationName: cfg.Alexa.InvocationName,
		BuildDir:       cfg.Generator.BuildDir,
		AskBinary:      cfg.Deploy.AskBinary,
		PollInterval:   config.Duration(cfg.Deploy.PollInterval, service.DefaultPollInterval),
		Timeout:        config.Duration(cfg.Deploy.Timeout, service.DefaultTrainingTimeout),
	}, runner, logger)

	if err := deployment.Deploy(ctx); err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deployment finished.")
	return nil
}
