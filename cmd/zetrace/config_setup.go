package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zetrace/internal/config"
)

// loadConfig reads --config, or searches for zetrace.toml upwards from the
// working directory, then applies environment overrides. A missing file
// yields the defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err == nil {
			cfg, _, err = config.Load(wd)
		}
	}
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// overrideTraceFlags copies [trace] values from cfg into the persistent
// trace flags the user did not set explicitly.
func overrideTraceFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Root().PersistentFlags()
	set := func(name, value string) error {
		if value == "" || flags.Changed(name) {
			return nil
		}
		return flags.Set(name, value)
	}
	if err := set("trace", cfg.Trace.Output); err != nil {
		return err
	}
	if err := set("trace-level", cfg.Trace.Level); err != nil {
		return err
	}
	if err := set("trace-mode", cfg.Trace.Mode); err != nil {
		return err
	}
	if cfg.Trace.RingSize > 0 {
		if err := set("trace-ring-size", fmt.Sprint(cfg.Trace.RingSize)); err != nil {
			return err
		}
	}
	return set("trace-heartbeat", cfg.Trace.Heartbeat)
}
