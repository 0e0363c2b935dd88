package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/resilience"
	"nifty-advisor/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the analysis over HTTP until interrupted.

  GET  /                       service banner
  GET  /health                 liveness
  GET  /health/ready           component health
  POST /analyze/nifty-options  run an analysis
  GET  /journal                recent analyses
  GET  /journal/{id}           one recorded analysis`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			client, err := app.NewClient()
			if err != nil {
				return err
			}
			journal, err := app.Journal()
			if err != nil {
				return err
			}
			pipelineOpts, err := app.PipelineOptions("")
			if err != nil {
				return err
			}

			health := resilience.NewHealthMonitor()
			health.RegisterComponent("nse", resilience.CircuitHealthCheck(client.Breaker()))
			health.RegisterComponent("journal", resilience.DatabaseHealthCheck(journal.Ping))

			sc := app.Config.Server
			srv := server.New(server.Config{
				Addr:             addr,
				ReadTimeout:      sc.ReadTimeout,
				WriteTimeout:     sc.WriteTimeout,
				RequestTimeout:   sc.RequestTimeout,
				CORSOrigins:      sc.CORSOrigins,
				Symbol:           app.Config.Fetcher.Symbol,
				StrictValidation: app.Config.Analysis.StrictValidation,
				Version:          Version,
				Log:              app.Logger,
				Fetcher:          client,
				Pipeline:         analysis.NewPipeline(pipelineOpts...),
				Journal:          journal,
				Health:           health,
			})

			ctx, stop := commandContext(cmd, 0)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()
			if !output.IsJSON() {
				output.Success("Listening on %s", addr)
				output.Dim("Press Ctrl+C to stop")
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config)")
	return cmd
}
