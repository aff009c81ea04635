package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cjcordosi/concurrencylab/internal/cpuload"
	"github.com/cjcordosi/concurrencylab/internal/ringpass"
)

var (
	ringWorkers    int
	ringBufferSize int
	ringLoad       float64
	ringDuration   time.Duration
	ringMeasureCPU bool
)

var ringPassCmd = &cobra.Command{
	Use:   "ringpass",
	Short: "Run the ring-passing throughput benchmark",
	Long: `Arranges a fixed number of worker goroutines in a ring, each
forwarding tokens to the next over a pkg/chanlab channel, for a measured
duration, then verifies every token was returned exactly once.`,
	RunE: runRingPass,
}

func init() {
	ringPassCmd.Flags().IntVarP(&ringWorkers, "workers", "n", 8, "ring size")
	ringPassCmd.Flags().IntVarP(&ringBufferSize, "buffer-size", "b", 1, "per-worker channel capacity (0 or 1)")
	ringPassCmd.Flags().Float64VarP(&ringLoad, "load", "l", 0.75, "token pool size as a fraction of ring absorbing capacity (must be below 1)")
	ringPassCmd.Flags().DurationVarP(&ringDuration, "duration", "d", 0, "measurement window (0 uses the config default)")
	ringPassCmd.Flags().BoolVar(&ringMeasureCPU, "measure-cpu", false, "report process CPU time spent over the run")
}

func runRingPass(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	duration := ringDuration
	if duration <= 0 {
		duration = cfg.RingPassDuration
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), duration+5*time.Second)
	defer cancel()

	var res *ringpass.Result
	run := func() error {
		var runErr error
		res, runErr = ringpass.Run(ctx, logger, ringpass.Scenario{
			NumWorkers: ringWorkers,
			BufferSize: ringBufferSize,
			Load:       ringLoad,
			Duration:   duration,
		})
		return runErr
	}

	out := cmd.OutOrStdout()

	if ringMeasureCPU {
		spent, err := cpuload.Around(run)
		if err != nil {
			return fmt.Errorf("ringpass run failed: %w", err)
		}
		fmt.Fprintf(out, "cpu time spent: %s (over %s wall clock)\n", spent, duration)
	} else if err := run(); err != nil {
		return fmt.Errorf("ringpass run failed: %w", err)
	}

	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(out, "tokens sent:     %d\n", res.TokensSent)
	fmt.Fprintf(out, "tokens returned: %d\n", res.TokensBack)
	fmt.Fprintf(out, "duplicates:      %d\n", res.Duplicates)
	fmt.Fprintf(out, "dropped:         %d\n", res.Dropped)

	if res.Duplicates > 0 || res.Dropped > 0 {
		fail.Fprintln(out, "FAIL: delivery violation detected")
		return fmt.Errorf("ringpass: %d duplicate(s), %d dropped", res.Duplicates, res.Dropped)
	}
	pass.Fprintln(out, "PASS: every token delivered exactly once")
	return nil
}
