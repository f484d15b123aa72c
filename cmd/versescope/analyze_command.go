package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"versescope/internal/pipeline"
	"versescope/internal/services"
	"versescope/internal/textutil"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var detailFlag string
	var jsonOutput bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "analyze <reference...>",
		Short: "Look up a verse and generate its contextual analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := queryFromArgs(args)
			if textutil.NormalizeQuery(query) == "" {
				return errors.New(services.UserMessage(pipeline.ErrEmptyQuery))
			}

			orch, cfg, _, err := ctx.orchestrator()
			if err != nil {
				return err
			}
			defer orch.Close()

			level, err := detailLevel(detailFlag, cfg)
			if err != nil {
				return err
			}

			if !quiet && !jsonOutput {
				stderr := cmd.ErrOrStderr()
				colorize := shouldColorize(stderr)
				unsubscribe := orch.Subscribe(func(snap pipeline.Snapshot) {
					if line := renderPhaseLine(snap, colorize); line != "" {
						fmt.Fprintln(stderr, line)
					}
				})
				defer unsubscribe()
			}

			snap, runErr := orch.Run(cmd.Context(), query, level)
			if jsonOutput && snap.Phase.Terminal() {
				if err := writeJSON(cmd, snap); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("analyze %q: %s (%s)", query, services.UserMessage(runErr), services.Kind(runErr))
			}
			if jsonOutput {
				return nil
			}
			writeAnalysis(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&detailFlag, "detail", "d", "", "Analysis depth: brief or comprehensive (defaults to analysis.detail)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the final pipeline snapshot as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}

func writeAnalysis(out io.Writer, snap pipeline.Snapshot, colorize bool) {
	if snap.Verse != nil {
		writeVerse(out, snap.Verse.Reference, snap.Verse.Translation, snap.Verse.Text)
	}
	if snap.Analysis == nil {
		return
	}
	record := snap.Analysis

	sections := []struct {
		title string
		body  string
	}{
		{"Historical Context", record.HistoricalContext},
		{"Linguistic Lens", record.LinguisticLens},
	}
	for _, section := range sections {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader(section.title, colorize) {
			fmt.Fprintln(out, line)
		}
		body := strings.TrimSpace(section.body)
		if body == "" {
			body = "(none)"
		}
		fmt.Fprintln(out, body)
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Cross-References", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(record.CrossReferences) == 0 {
		fmt.Fprintln(out, "(none)")
		return
	}
	fmt.Fprintln(out, renderCrossReferences(record.CrossReferences))
}

func writeVerse(out io.Writer, reference, translation, text string) {
	header := reference
	if strings.TrimSpace(translation) != "" {
		header = fmt.Sprintf("%s (%s)", reference, translation)
	}
	fmt.Fprintln(out, header)
	fmt.Fprintf(out, "\"%s\"\n", text)
}
