package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nifty-advisor/internal/store"
	"nifty-advisor/pkg/utils"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Review recorded analyses",
		Long:  "List and inspect the analyses recorded in the signal journal.",
	}

	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalShowCmd(app))
	return cmd
}

func newJournalListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			journal, err := app.Journal()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			entries, err := journal.ListAnalyses(ctx, limit)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if entries == nil {
					entries = []store.Entry{}
				}
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Dim("No analyses recorded yet. Run 'nifty-advisor analyze' first.")
				return nil
			}

			table := NewTable(output, "TIME", "ID", "UNDERLYING", "BIAS", "SCORE", "RECOMMENDATION", "CONF", "RISK", "BLOCKED")
			for _, e := range entries {
				blocked := ""
				if e.Blocked {
					blocked = output.Red("yes")
				}
				table.AddRow(
					e.Timestamp.In(utils.IndiaLocation).Format("02-Jan-2006 15:04"),
					shortID(e.ID),
					optionalStrike(e.Underlying),
					output.Bias(e.Bias),
					utils.FormatScore(e.Score),
					string(e.Recommendation),
					utils.FormatConfidence(e.Confidence),
					output.Risk(e.RiskLevel),
					blocked,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", store.DefaultListLimit, "maximum number of analyses to list")
	return cmd
}

func newJournalShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			format, err := resolveFormat(cmd)
			if err != nil {
				return err
			}

			journal, err := app.Journal()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			entry, err := journal.GetAnalysis(ctx, args[0])
			if err != nil {
				return err
			}

			switch format {
			case FormatJSON:
				return output.JSON(entry)
			case FormatYAML:
				return output.YAML(entry.Report)
			}

			output.Dim("Analysis %s recorded %s", entry.ID,
				entry.Timestamp.In(utils.IndiaLocation).Format("02-Jan-2006 15:04:05 MST"))
			if entry.Report == nil {
				output.Printf("  %s  score %s  %s\n", output.Bias(entry.Bias), utils.FormatScore(entry.Score), entry.Recommendation)
				return nil
			}
			displayReport(output, entry.Report, false)
			return nil
		},
	}
	cmd.Flags().String("format", FormatText, "output format: text, json or yaml")
	return cmd
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

