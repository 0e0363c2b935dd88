package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/trading"
	"nifty-advisor/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest <snapshot.json>...",
		Short: "Replay saved option chains through a trade simulator",
		Long: `Analyse each saved option-chain snapshot in date order and simulate buying
the ATM option the analysis recommends. Open trades are closed the next day at
intrinsic value, with stop-loss and target applied to the premium.

Snapshot dates come from records.timestamp, or a YYYY-MM-DD date in the file name.`,
		Example: `  nifty-advisor backtest snapshots/*.json
  nifty-advisor backtest --capital 50000 --quantity 50 snapshots/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			bc := app.Config.Backtest
			cfg := trading.BacktestConfig{
				InitialCapital:    bc.InitialCapital,
				StopLoss:          bc.StopLoss,
				Target:            bc.Target,
				Quantity:          bc.Quantity,
				RespectSafetyGate: bc.RespectSafetyGate,
			}
			if cmd.Flags().Changed("capital") {
				cfg.InitialCapital, _ = cmd.Flags().GetFloat64("capital")
			}
			if cmd.Flags().Changed("stop-loss") {
				cfg.StopLoss, _ = cmd.Flags().GetFloat64("stop-loss")
			}
			if cmd.Flags().Changed("target") {
				cfg.Target, _ = cmd.Flags().GetFloat64("target")
			}
			if cmd.Flags().Changed("quantity") {
				cfg.Quantity, _ = cmd.Flags().GetInt("quantity")
			}
			if ignore, _ := cmd.Flags().GetBool("ignore-safety"); ignore {
				cfg.RespectSafetyGate = false
			}
			if err := trading.ValidateConfig(cfg); err != nil {
				return err
			}

			allowWeekly, _ := cmd.Flags().GetBool("allow-weekly")
			weights, _ := cmd.Flags().GetString("weights")
			pipelineOpts, err := app.PipelineOptions(weights)
			if err != nil {
				return err
			}

			snapshots, err := trading.LoadSnapshots(args)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, 10*time.Minute)
			defer cancel()

			opts := analysis.Options{BlockWeeklyExpiry: app.Config.Analysis.BlockWeeklyExpiry && !allowWeekly}
			engine := trading.NewEngine(cfg, opts, app.Logger, pipelineOpts...)
			result, err := engine.Run(ctx, snapshots)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			displayBacktest(output, result, len(snapshots))
			return nil
		},
	}

	cmd.Flags().Float64("capital", 0, "initial capital (default from config)")
	cmd.Flags().Float64("stop-loss", 0, "stop loss as a fraction of premium (default from config)")
	cmd.Flags().Float64("target", 0, "target as a fraction of premium (default from config)")
	cmd.Flags().Int("quantity", 0, "units per trade (default from config)")
	cmd.Flags().Bool("allow-weekly", false, "do not block on weekly expiries")
	cmd.Flags().Bool("ignore-safety", false, "enter trades even when the safety gate blocks")
	cmd.Flags().String("weights", "", "YAML weight profile for the scorer")
	return cmd
}

func displayBacktest(output *Output, r *trading.BacktestResult, days int) {
	output.Println()
	output.Bold("Backtest Summary")
	output.Dim("%d snapshots, %d trades", days, r.TotalTrades)
	output.Println()

	output.Printf("  Initial capital:  %s\n", utils.FormatIndianCurrency(r.InitialCapital))
	output.Printf("  Final capital:    %s\n", utils.FormatIndianCurrency(r.FinalCapital))
	output.Printf("  Total P&L:        %s\n", output.PnL(r.TotalPnL, utils.FormatPnL(r.TotalPnL)))
	output.Printf("  Total return:     %s\n", output.PnL(r.TotalReturn, utils.FormatPercent(r.TotalReturn*100)))
	output.Printf("  Win rate:         %.1f%% (%d won, %d lost)\n", r.WinRate*100, r.WinningTrades, r.LosingTrades)
	output.Printf("  Average win:      %s\n", utils.FormatIndianCurrency(r.AvgWin))
	output.Printf("  Average loss:     %s\n", utils.FormatIndianCurrency(r.AvgLoss))
	output.Printf("  Profit factor:    %.2f\n", r.ProfitFactor)
	output.Printf("  Max drawdown:     %.2f%%\n", r.MaxDrawdown*100)
	output.Println()

	if len(r.Trades) == 0 {
		output.Dim("No trades were taken.")
		return
	}

	table := NewTable(output, "ENTRY", "EXIT", "TYPE", "STRIKE", "ENTRY PX", "EXIT PX", "P&L", "REASON")
	for _, t := range r.Trades {
		exitDate, exitPx := "-", "-"
		if t.ExitDate != nil {
			exitDate = t.ExitDate.In(utils.IndiaLocation).Format("02-Jan-2006")
		}
		if t.ExitPrice != nil {
			exitPx = fmt.Sprintf("%.2f", *t.ExitPrice)
		}
		table.AddRow(
			t.EntryDate.In(utils.IndiaLocation).Format("02-Jan-2006"),
			exitDate,
			t.OptionType,
			utils.FormatStrike(t.StrikePrice),
			fmt.Sprintf("%.2f", t.EntryPrice),
			exitPx,
			output.PnL(t.PnL, utils.FormatPnL(t.PnL)),
			string(t.ExitReason),
		)
	}
	table.Render()
}
