package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"versescope/internal/analysis"
	"versescope/internal/services"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	var detailFlag string
	var textFlag string

	cmd := &cobra.Command{
		Use:   "prompt <reference...>",
		Short: "Print the analysis prompt for a verse without calling the LLM",
		Long: "Print the analysis prompt for a verse without calling the LLM.\n\n" +
			"The verse text is looked up unless --text is given, in which case the\n" +
			"arguments are used verbatim as the reference.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level, err := detailLevel(detailFlag, cfg)
			if err != nil {
				return err
			}

			reference := queryFromArgs(args)
			text := strings.TrimSpace(textFlag)
			if text == "" {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				verse, err := ctx.lookupClient(cfg, logger).Lookup(cmd.Context(), reference)
				if err != nil {
					return fmt.Errorf("lookup %q: %s (%s)", reference, services.UserMessage(err), services.Kind(err))
				}
				reference, text = verse.Reference, verse.Text
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(analysis.BuildPrompt(reference, text, level), "\n"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&detailFlag, "detail", "d", "", "Analysis depth: brief or comprehensive (defaults to analysis.detail)")
	cmd.Flags().StringVar(&textFlag, "text", "", "Verse text to embed instead of looking it up")
	return cmd
}
