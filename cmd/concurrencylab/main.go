package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "concurrencylab",
	Short: "Stress harness and CLI for the chanlab channel/select primitive",
	Long: `concurrencylab drives pkg/chanlab's channel and select implementation
through the stress scenarios it was built against:

- stress: distance-vector routing convergence, checked against a
  Floyd-Warshall oracle
- ringpass: a ring-passing throughput benchmark
- select-demo: a small interactive demonstration of multi-way select

Use one of the subcommands below for details.`,
	Version: version,
}

var cfgPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(ringPassCmd)
	rootCmd.AddCommand(selectDemoCmd)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file overlaying defaults")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}
