package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cjcordosi/concurrencylab/internal/cpuload"
	"github.com/cjcordosi/concurrencylab/internal/distvec"
	"github.com/cjcordosi/concurrencylab/internal/topology"
)

var (
	stressTopologyFile string
	stressBufferSize   int
	stressTimeout      time.Duration
	stressMeasureCPU   bool
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run the distance-vector routing convergence stress test",
	Long: `Loads a topology file ("N" followed by an N-by-N matrix of edge
weights, negative meaning no direct link), spins up one router goroutine
per node wired together with pkg/chanlab channels and select, and
verifies the converged distance vectors match a Floyd-Warshall oracle.`,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().StringVarP(&stressTopologyFile, "topology", "t", "", "topology file (required)")
	stressCmd.Flags().IntVarP(&stressBufferSize, "buffer-size", "b", 1, "per-link channel capacity (0 or 1)")
	stressCmd.Flags().DurationVarP(&stressTimeout, "timeout", "d", 0, "convergence deadline (0 uses the config default)")
	stressCmd.Flags().BoolVar(&stressMeasureCPU, "measure-cpu", false, "report process CPU time spent over the run")
	_ = stressCmd.MarkFlagRequired("topology")
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	m, err := topology.ParseFile(stressTopologyFile)
	if err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}

	timeout := stressTimeout
	if timeout <= 0 {
		timeout = cfg.StressTimeout
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
	defer cancel()

	var res *distvec.Result
	run := func() error {
		var runErr error
		res, runErr = distvec.Run(ctx, logger, distvec.Scenario{
			Topology:   m,
			BufferSize: stressBufferSize,
			Timeout:    timeout,
		})
		return runErr
	}

	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	if stressMeasureCPU {
		spent, err := cpuload.Around(run)
		if err != nil {
			return fmt.Errorf("stress run failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cpu time spent: %s (over %s wall clock)\n", spent, timeout)
	} else if err := run(); err != nil {
		return fmt.Errorf("stress run failed: %w", err)
	}

	if !res.Converged {
		fail.Fprintln(cmd.OutOrStdout(), "FAIL: did not converge within deadline")
		return fmt.Errorf("stress: no convergence after %d rounds", res.Rounds)
	}
	if res.Diff != "" {
		fail.Fprintln(cmd.OutOrStdout(), "FAIL: converged distances disagree with the Floyd-Warshall oracle")
		fmt.Fprintln(cmd.OutOrStdout(), res.Diff)
		return fmt.Errorf("stress: distance mismatch")
	}

	pass.Fprintf(cmd.OutOrStdout(), "PASS: converged after %d rounds, matches oracle\n", res.Rounds)
	return nil
}
