package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"versescope/internal/services"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "lookup <reference...>",
		Short: "Resolve a verse reference to its text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			query := queryFromArgs(args)
			verse, err := ctx.lookupClient(cfg, logger).Lookup(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("lookup %q: %s (%s)", query, services.UserMessage(err), services.Kind(err))
			}
			if jsonOutput {
				return writeJSON(cmd, verse)
			}
			writeVerse(cmd.OutOrStdout(), verse.Reference, verse.Translation, verse.Text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the verse as JSON")
	return cmd
}
