package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webcomputing/assistant-alexa/internal/service"
)

var generateCmd = &cobra.Command{
	Use:   "generate [intents-file]",
	Short: "Generate Alexa interaction models",
	Long: `Generate one Alexa interaction model per language from an intents file.

The intents file defaults to generator.intents_file (config/intents.yaml).
Models are written to <generator.build_dir>/alexa/schema_<lang>.json.

Examples:
  # Generate from the configured intents file
  assistant-alexa generate

  # Generate from a specific file
  assistant-alexa generate ./intents.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	intentsFile := cfg.Generator.IntentsFile
	if len(args) == 1 {
		intentsFile = args[0]
	}

	generator := service.NewGeneratorService(service.GeneratorConfig{
		InvocationName: cfg.Alexa.InvocationName,
		Entities:       cfg.Alexa.Entities,
		BuildDir:       cfg.Generator.BuildDir,
	}, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	paths, err := generator.GenerateFile(ctx, intentsFile)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
