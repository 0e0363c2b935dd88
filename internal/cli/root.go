// Package cli provides the nifty-advisor command-line interface.
package cli

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/analysis/scoring"
	"nifty-advisor/internal/config"
	"nifty-advisor/internal/logging"
	"nifty-advisor/internal/nse"
	"nifty-advisor/internal/store"
	"nifty-advisor/pkg/utils"
)

// Version information
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

// App holds the application dependencies, built once the root command has
// parsed its flags.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	location string
	journal  store.Journal
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "nifty-advisor",
		Short: "NIFTY options advisor for beginner traders",
		Long: `nifty-advisor reads the NSE option chain for NIFTY, derives option-market
features, evaluates trading rules, applies safety checks and explains the
verdict in plain language.

It never places orders. Every analysis is advisory only.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory or file (default: ~/.config/nifty-advisor)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

func (a *App) init(cmd *cobra.Command) error {
	location, _ := cmd.Flags().GetString("config")
	a.location = location
	cfg, err := config.Load(location)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    true,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	a.Logger.Debug().Str("config", cfg.File).Str("command", cmd.Name()).Msg("Configuration loaded")
	return nil
}

// Journal opens the configured journal on first use.
func (a *App) Journal() (store.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	if !a.Config.Journal.Enabled {
		a.journal = store.NopJournal{}
		return a.journal, nil
	}
	j, err := store.NewSQLiteJournal(a.Config.Journal.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Journal.Path).Msg("Journal opened")
	a.journal = j
	return j, nil
}

// Close releases the journal, if one was opened.
func (a *App) Close() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	return err
}

// NewClient builds the live NSE client from configuration.
func (a *App) NewClient() (*nse.Client, error) {
	fc := a.Config.Fetcher
	return nse.NewClient(nse.Config{
		BaseURL:           fc.BaseURL,
		Timeout:           fc.Timeout,
		MaxRetries:        fc.MaxRetries,
		RequestsPerMinute: fc.RequestsPerMinute,
		PrimeSession:      fc.PrimeSession,
		PrimeDelay:        fc.PrimeDelay,
	}, nse.WithLogger(a.Logger))
}

// Fetcher returns a file fetcher when path is set, the live client otherwise.
func (a *App) Fetcher(path string) (nse.Fetcher, error) {
	if path != "" {
		return nse.FileFetcher{Path: path}, nil
	}
	return a.NewClient()
}

// PipelineOptions resolves the scorer weights. weightsPath overrides the
// configured profile.
func (a *App) PipelineOptions(weightsPath string) ([]analysis.Option, error) {
	opts := []analysis.Option{analysis.WithLogger(logging.WithOperation(a.Logger, "analysis"))}

	if weightsPath == "" {
		weightsPath = a.Config.Analysis.WeightsProfile
	}
	if weightsPath != "" {
		profile, err := scoring.LoadProfile(weightsPath)
		if err != nil {
			return nil, err
		}
		a.Logger.Debug().Str("profile", profile.Name).Msg("Using weight profile")
		opts = append(opts, analysis.WithScorer(profile.Scorer()))
	}
	return opts, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Version needs no configuration.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("nifty-advisor v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigFilePath(app.location)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if app.Config.Analysis.WeightsProfile != "" {
				if _, err := scoring.LoadProfile(app.Config.Analysis.WeightsProfile); err != nil {
					output.Error("Weight profile is invalid: %v", err)
					return err
				}
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Analysis")
	output.Printf("  Block weekly expiry: %v\n", cfg.Analysis.BlockWeeklyExpiry)
	output.Printf("  Strict validation:   %v\n", cfg.Analysis.StrictValidation)
	output.Printf("  Weights profile:     %s\n", orDefault(cfg.Analysis.WeightsProfile, "(built-in)"))
	output.Println()

	output.Bold("Fetcher")
	output.Printf("  Symbol:              %s\n", cfg.Fetcher.Symbol)
	output.Printf("  Base URL:            %s\n", cfg.Fetcher.BaseURL)
	output.Printf("  Timeout:             %s\n", cfg.Fetcher.Timeout)
	output.Printf("  Max retries:         %d\n", cfg.Fetcher.MaxRetries)
	output.Printf("  Requests/minute:     %d\n", cfg.Fetcher.RequestsPerMinute)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:             %s\n", cfg.Server.Addr)
	output.Printf("  Request timeout:     %s\n", cfg.Server.RequestTimeout)
	output.Printf("  CORS origins:        %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))
	output.Println()

	output.Bold("Journal")
	output.Printf("  Enabled:             %v\n", cfg.Journal.Enabled)
	output.Printf("  Path:                %s\n", cfg.Journal.Path)
	output.Println()

	output.Bold("Backtest")
	output.Printf("  Initial capital:     %s\n", utils.FormatIndianCurrency(cfg.Backtest.InitialCapital))
	output.Printf("  Stop loss / target:  %.0f%% / %.0f%%\n", cfg.Backtest.StopLoss*100, cfg.Backtest.Target*100)
	output.Printf("  Quantity:            %d\n", cfg.Backtest.Quantity)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:               %s\n", cfg.Logging.Level)
	output.Printf("  File:                %s\n", fileSetting(cfg.Logging.File, cfg.Logging.FilePath))
}

func fileSetting(enabled bool, path string) string {
	if !enabled {
		return "disabled"
	}
	return path
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
