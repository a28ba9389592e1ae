package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"NewsAlerts/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, event subscriber and control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return ctx.withApp(sigCtx, func(a *app.Application) error {
				return a.Serve(sigCtx)
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every active alert once and print the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				summary, err := a.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, summary)
			})
		},
	}
}

func newProcessAlertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process-alert <alert-id>",
		Short: "Run the pipeline for a single alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				result, err := a.ProcessAlert(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return writeJSON(cmd, result)
			})
		},
	}
}

func newParseIntentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "parse-intent <text>",
		Short: "Preview the structured intent for free-form text without saving it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			parser := app.NewIntentParser(cmd.Context(), cfg, ctx.logger)
			intent := parser.ParseText(cmd.Context(), strings.Join(args, " "))
			return writeJSON(cmd, intent)
		},
	}
}
