// Command nifty-advisor analyses the NSE NIFTY option chain and explains the
// result for beginner options traders.
package main

import (
	"os"

	"github.com/fatih/color"

	"nifty-advisor/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
