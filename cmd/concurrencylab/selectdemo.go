package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cjcordosi/concurrencylab/pkg/chanlab"
)

var selectDemoChannels int

var selectDemoCmd = &cobra.Command{
	Use:   "select-demo",
	Short: "Demonstrate chanlab.Select waiting across multiple channels",
	Long: `Creates several channels, parks a Select across a receive intent
on each, and after a short delay sends one message on the middle channel
to show Select waking and committing exactly one intent.`,
	RunE: runSelectDemo,
}

func init() {
	selectDemoCmd.Flags().IntVarP(&selectDemoChannels, "channels", "n", 3, "number of channels to select across")
}

func runSelectDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	out := cmd.OutOrStdout()

	if selectDemoChannels < 1 {
		return fmt.Errorf("select-demo: need at least one channel")
	}

	channels := make([]*chanlab.Channel, selectDemoChannels)
	intents := make([]chanlab.Intent, selectDemoChannels)
	for i := range channels {
		channels[i] = chanlab.New(1)
		intents[i] = chanlab.Intent{Channel: channels[i], Direction: chanlab.RecvIntent}
	}
	defer func() {
		for _, ch := range channels {
			_ = ch.Close()
			_ = ch.Destroy()
		}
	}()

	winner := selectDemoChannels / 2
	go func() {
		time.Sleep(200 * time.Millisecond)
		if err := channels[winner].Send(fmt.Sprintf("message for channel %d", winner)); err != nil {
			logger.WithError(err).Warn("select-demo: send failed")
		}
	}()

	fmt.Fprintf(out, "parking select across %d channels...\n", selectDemoChannels)
	idx, err := chanlab.Select(intents)
	if err != nil {
		if errors.Is(err, chanlab.ErrClosed) {
			fmt.Fprintf(out, "select returned closed at index %d\n", idx)
			return nil
		}
		return fmt.Errorf("select-demo: %w", err)
	}

	highlight := color.New(color.FgCyan, color.Bold)
	highlight.Fprintf(out, "select committed intent %d: %v\n", idx, intents[idx].Recv)
	return nil
}
