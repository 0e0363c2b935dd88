package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"nifty-advisor/internal/nse"
)

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the raw option chain document",
		Long: `Download the NSE option chain JSON as served, without analysis. The saved
file can be analysed later with 'analyze --file' or replayed by 'backtest'.`,
		Example: `  nifty-advisor fetch > chain.json
  nifty-advisor fetch --out snapshots/2024-03-18.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			out, _ := cmd.Flags().GetString("out")
			pretty, _ := cmd.Flags().GetBool("pretty")

			client, err := app.NewClient()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, 2*time.Minute)
			defer cancel()

			raw, err := client.FetchRaw(ctx, app.Config.Fetcher.Symbol)
			if err != nil {
				return err
			}
			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err == nil {
					raw = buf.Bytes()
				}
			}

			if out == "" {
				_, err := cmd.OutOrStdout().Write(append(raw, '\n'))
				return err
			}
			if err := writeSnapshot(out, raw); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"path": out, "bytes": len(raw)})
			}
			output.Success("Saved %d bytes to %s", len(raw), out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "write the document to this file instead of stdout")
	cmd.Flags().Bool("pretty", false, "indent the JSON document")
	return cmd
}

func writeSnapshot(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if _, err := nse.DecodeDocument(data); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
