package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/analysis/rules"
	"nifty-advisor/internal/chain"
	"nifty-advisor/internal/models"
	"nifty-advisor/internal/nse"
	"nifty-advisor/internal/store"
	"nifty-advisor/pkg/utils"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse the NIFTY option chain",
		Long: `Fetch the NIFTY option chain from NSE (or read a saved document), compute
PCR, max OI, support/resistance and OI build-up, evaluate the trading rules,
apply safety checks and print a plain-language verdict.`,
		Example: `  nifty-advisor analyze
  nifty-advisor analyze --file snapshot.json --detail
  nifty-advisor analyze --allow-weekly --format yaml
  nifty-advisor analyze --weights pcr-heavy.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			file, _ := cmd.Flags().GetString("file")
			allowWeekly, _ := cmd.Flags().GetBool("allow-weekly")
			weights, _ := cmd.Flags().GetString("weights")
			detail, _ := cmd.Flags().GetBool("detail")

			format, err := resolveFormat(cmd)
			if err != nil {
				return err
			}

			fetcher, err := app.Fetcher(file)
			if err != nil {
				return err
			}
			pipelineOpts, err := app.PipelineOptions(weights)
			if err != nil {
				return err
			}

			opts := analysis.Options{BlockWeeklyExpiry: app.Config.Analysis.BlockWeeklyExpiry && !allowWeekly}

			ctx, cancel := commandContext(cmd, 2*time.Minute)
			defer cancel()

			if format == FormatText && file == "" {
				output.Info("Fetching %s option chain from NSE...", app.Config.Fetcher.Symbol)
			}

			report, err := app.Analyze(ctx, fetcher, opts, pipelineOpts...)
			if err != nil {
				return err
			}

			journal, err := app.Journal()
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Journal unavailable, analysis not recorded")
			} else {
				entry := store.NewEntry(report, app.Config.Fetcher.Symbol, time.Now())
				if err := journal.SaveAnalysis(ctx, entry); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to journal analysis")
				} else {
					app.Logger.Debug().Str("id", entry.ID).Msg("Analysis journaled")
				}
			}

			return renderReport(output, report, format, detail)
		},
	}

	cmd.Flags().String("file", "", "read the option chain from a saved JSON document instead of NSE")
	cmd.Flags().Bool("allow-weekly", false, "do not block trading on weekly expiries")
	cmd.Flags().String("weights", "", "YAML weight profile for the scorer")
	cmd.Flags().String("format", FormatText, "output format: text, json or yaml")
	cmd.Flags().Bool("detail", false, "show features, rule results and score contributions")

	return cmd
}

// Analyze fetches, validates and analyses one option-chain document.
func (a *App) Analyze(ctx context.Context, fetcher nse.Fetcher, opts analysis.Options, pipelineOpts ...analysis.Option) (*models.Report, error) {
	doc, err := fetcher.FetchOptionChain(ctx, a.Config.Fetcher.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option chain: %w", err)
	}

	if a.Config.Analysis.StrictValidation {
		if err := chain.Validate(doc); err != nil {
			return nil, fmt.Errorf("data validation failed: %w", err)
		}
	}

	report, err := analysis.NewPipeline(pipelineOpts...).Run(doc, opts)
	if err != nil {
		return nil, err
	}
	if err := analysis.RequireRows(report); err != nil {
		return nil, fmt.Errorf("%w, please try again later", err)
	}
	return report, nil
}

func resolveFormat(cmd *cobra.Command) (string, error) {
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		return FormatJSON, nil
	}
	format, _ := cmd.Flags().GetString("format")
	switch f := strings.ToLower(format); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

// commandContext is cancelled on SIGINT/SIGTERM or after timeout.
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func renderReport(output *Output, r *models.Report, format string, detail bool) error {
	switch format {
	case FormatJSON:
		if detail {
			return output.JSON(detailedReport{Report: *r, Details: newReportDetails(r)})
		}
		return output.JSON(r)
	case FormatYAML:
		if detail {
			return output.YAML(detailedReport{Report: *r, Details: newReportDetails(r)})
		}
		return output.YAML(r)
	}
	displayReport(output, r, detail)
	return nil
}

// detailedReport adds the intermediate results to the wire form.
type detailedReport struct {
	models.Report `yaml:",inline"`
	Details        reportDetails `json:"details" yaml:"details"`
}

type reportDetails struct {
	Features              models.FeatureSet   `json:"features" yaml:"features"`
	RuleResults           []models.RuleResult `json:"rule_results" yaml:"rule_results"`
	SignalStrength        float64             `json:"signal_strength" yaml:"signal_strength"`
	WeightedContributions map[string]float64  `json:"weighted_contributions" yaml:"weighted_contributions"`
	WeightsUsed           map[string]float64  `json:"weights_used" yaml:"weights_used"`
	Blocked               bool                `json:"blocked" yaml:"blocked"`
	BlockReason           *string             `json:"block_reason,omitempty" yaml:"block_reason,omitempty"`
	Rows                  int                 `json:"rows" yaml:"rows"`
}

func newReportDetails(r *models.Report) reportDetails {
	return reportDetails{
		Features:              r.Features,
		RuleResults:           r.Evaluation.RuleResults,
		SignalStrength:        r.Evaluation.SignalStrength,
		WeightedContributions: r.Scoring.WeightedContributions,
		WeightsUsed:           r.Scoring.WeightsUsed,
		Blocked:               r.Safety.Blocked,
		BlockReason:           r.Safety.BlockReason,
		Rows:                  r.Rows,
	}
}

func displayReport(output *Output, r *models.Report, detail bool) {
	output.Println()
	output.Bold("NIFTY Options Analysis")
	if u := r.Features.UnderlyingValue; u != nil {
		output.Dim("Underlying %s  |  %d strikes", utils.FormatStrike(*u), r.Rows)
	}
	output.Println()

	output.Printf("  Bias:            %s\n", output.Bias(r.Bias))
	output.Printf("  Score:           %s (%s)\n", utils.FormatScore(r.Score), output.Category(r.ScoreCategory))
	output.Printf("  Recommendation:  %s\n", output.BoldText(string(r.Recommendation)))
	output.Printf("  Confidence:      %s\n", utils.FormatConfidence(r.ConfidenceScore))
	output.Printf("  Risk level:      %s\n", output.Risk(r.RiskLevel))
	output.Println()

	e := r.Explanation
	output.Bold("Market")
	output.Printf("  %s\n\n", e.MarketBias)

	output.Bold("Suggested action")
	if r.Blocked() {
		output.Printf("  %s\n\n", output.Red(e.SuggestedAction))
	} else {
		output.Printf("  %s\n\n", e.SuggestedAction)
	}

	if len(e.Why) > 0 {
		output.Bold("Why")
		for _, w := range e.Why {
			output.Printf("  - %s\n", w.Reason)
		}
		output.Println()
	}

	output.Bold("Risk")
	output.Printf("  %s\n\n", e.RiskLevelDescription)

	output.Bold("What can go wrong")
	for _, risk := range e.WhatCanGoWrong {
		output.Printf("  - %s\n", risk.Risk)
	}
	output.Println()

	if detail {
		displayDetails(output, r)
	}

	if len(r.Warnings) > 0 {
		output.Bold("Warnings")
		for _, w := range r.Warnings {
			output.Printf("  %s %s\n", output.Severity(w.Severity), w.Message)
		}
	}
}

func displayDetails(output *Output, r *models.Report) {
	fs := r.Features
	output.Bold("Features")
	output.Printf("  ATM strike:       %s\n", optionalStrike(fs.ATMStrike))
	output.Printf("  Overall PCR:      %s\n", utils.FormatOptional(fs.OverallPCR, "%.2f"))
	output.Printf("  Max call OI:      %s\n", optionalStrike(fs.MaxCallOIStrike))
	output.Printf("  Max put OI:       %s\n", optionalStrike(fs.MaxPutOIStrike))
	output.Printf("  Support:          %s\n", optionalStrike(fs.Support))
	output.Printf("  Resistance:       %s\n", optionalStrike(fs.Resistance))
	output.Printf("  OI build-up:      %s\n", fs.OIBuildupType)
	output.Println()

	output.Bold("Rules")
	table := NewTable(output, "RULE", "SIGNAL", "WEIGHT", "CONTRIBUTION", "EXPLANATION")
	for _, rr := range r.Evaluation.RuleResults {
		signal := utils.FormatScore(rr.SignalStrength)
		if !rr.Triggered {
			signal = output.DimText("-")
		} else if rr.SignalStrength > rules.WeakSignal {
			signal = output.Green(signal)
		} else if rr.SignalStrength < -rules.WeakSignal {
			signal = output.Red(signal)
		}
		table.AddRow(
			rr.Name,
			signal,
			fmt.Sprintf("%.2f", r.Scoring.WeightsUsed[rr.Name]),
			utils.FormatScore(r.Scoring.WeightedContributions[rr.Name]),
			rr.Explanation,
		)
	}
	table.Render()
	output.Printf("\n  Combined signal: %s\n\n", utils.FormatScore(r.Evaluation.SignalStrength))
}

func optionalStrike(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatStrike(*v)
}
