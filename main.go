// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quickly-predict",
	Short: "Gateway for the ML demo frontends",
	Long: `quickly-predict validates and packages demo form input, forwards it to
the prediction services and hosts the pieces that run locally: the mock
sonar classifier, the wine nearest-neighbour estimator and the social
trends spreadsheet editor.

Run without a subcommand to start the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, estimateCmd, sheetCmd)
}

func main() {
	// Bare invocation serves
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
