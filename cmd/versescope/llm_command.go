package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"versescope/internal/services"
)

func newLLMCommand(ctx *commandContext) *cobra.Command {
	llmCmd := &cobra.Command{
		Use:   "llm",
		Short: "LLM connectivity utilities",
	}
	llmCmd.AddCommand(newLLMHealthCommand(ctx))
	return llmCmd
}

func newLLMHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Send a minimal completion to verify credentials and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			client := ctx.llmClient(cfg, logger)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if err := client.HealthCheck(cmd.Context()); err != nil {
				fmt.Fprintln(out, renderStatusLine("LLM", statusError, services.UserMessage(err), colorize))
				return fmt.Errorf("llm health: %w", err)
			}
			fmt.Fprintln(out, renderStatusLine("LLM", statusOK, client.Model(), colorize))
			return nil
		},
	}
}
