package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/sweep/internal/config"
)

var (
	version = "0.1.0"
	cfgFile string
	debug   bool
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Multi-region AWS resource inventory",
		Long: `Sweep - Multi-region AWS resource inventory

Sweep enumerates every region enabled for your account and lists compute
instances, object storage buckets, serverless functions, managed databases
and virtual networks in each one. Probe failures are isolated: a denied
service in one region never hides results from the others.

Sweep is read-only. It never creates, modifies or deletes resources.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Sweep {{.Version}} - Multi-region AWS resource inventory
`)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func loadConfig(_ *cobra.Command, _ []string) error {
	if cfgFile == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	setupLogging(cfg.Log.Level, debug)
	return nil
}
