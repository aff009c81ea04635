package main

import (
	"github.com/spf13/cobra"

	"github.com/cjcordosi/concurrencylab/pkg/config"
)

// loadConfig builds a config.Config from --config (if set) and applies
// the --log-level persistent flag on top: file defaults first, then
// explicit flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFile(cfgPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}
