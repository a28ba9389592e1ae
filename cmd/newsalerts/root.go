package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"NewsAlerts/internal/app"
	"NewsAlerts/internal/config"
	"NewsAlerts/internal/logging"
)

type commandContext struct {
	configFlag string
	cfg        *config.Config
	logger     *slog.Logger
}

func (c *commandContext) ensureConfig() config.Config {
	if c.cfg != nil {
		return *c.cfg
	}
	if c.configFlag != "" {
		_ = os.Setenv(config.ConfigPathEnv, c.configFlag)
	}
	cfg := config.Load()
	c.cfg = &cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return cfg
}

// withApp builds the full application, runs fn and closes it.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg := c.ensureConfig()
	application, err := app.New(ctx, cfg, version, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			c.logger.Warn("close application", "error", err)
		}
	}()
	return fn(application)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "newsalerts",
		Short:         "Personalized news alerts delivered over WhatsApp",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newProcessAlertCommand(ctx))
	rootCmd.AddCommand(newParseIntentCommand(ctx))
	return rootCmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
