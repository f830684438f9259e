package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/sweep/internal/config"
	"github.com/yairfalse/sweep/internal/emitter"
	"github.com/yairfalse/sweep/internal/store"
)

var (
	discoverAccount         string
	discoverAnchor          string
	discoverRegions         []string
	discoverExcludeRegions  []string
	discoverExcludeServices []string
	discoverTimeout         time.Duration
	discoverConcurrency     int
	discoverOutput          string
	discoverSave            bool
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Inventory resources across every enabled region",
	Long: `Enumerate the regions enabled for the account and run every service
probe in each one. Regional services (EC2, Lambda, RDS, VPC) are probed in
every region; S3 is probed once, from the anchor region, and its buckets
are listed under the anchor with their home region as an attribute.

Probe failures never abort the scan. They are logged and listed with the
results. Only a failure to enumerate regions exits non-zero.`,
	Example: `  sweep discover                              # All regions, JSON output
  sweep discover -o table                     # Human readable
  sweep discover --regions us-east-1,eu-west-1
  sweep discover --exclude-services S3,RDS
  sweep discover --timeout 2m --save          # Persist the snapshot`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverAccount, "account", "", "Account label for the snapshot (default: caller identity)")
	discoverCmd.Flags().StringVar(&discoverAnchor, "anchor", "", "Region used for account-global services")
	discoverCmd.Flags().StringSliceVar(&discoverRegions, "regions", nil, "Only scan these regions")
	discoverCmd.Flags().StringSliceVar(&discoverExcludeRegions, "exclude-regions", nil, "Skip these regions")
	discoverCmd.Flags().StringSliceVar(&discoverExcludeServices, "exclude-services", nil, "Skip these services (EC2, S3, Lambda, RDS, VPC)")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "Overall scan deadline (default from config)")
	discoverCmd.Flags().IntVar(&discoverConcurrency, "concurrency", 0, "Maximum probes in flight (default from config)")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "json", "Output format: json, yaml, table")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Persist the snapshot to the store")
}

// applyDiscoverFlags overrides config values with flags the user set.
func applyDiscoverFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("anchor") {
		c.Scanner.AnchorRegion = discoverAnchor
	}
	if flags.Changed("regions") {
		c.AWS.Regions = discoverRegions
	}
	if flags.Changed("exclude-regions") {
		c.AWS.ExcludeRegions = discoverExcludeRegions
	}
	if flags.Changed("exclude-services") {
		kinds, err := config.ParseServices(discoverExcludeServices)
		if err != nil {
			return fmt.Errorf("--exclude-services: %w", err)
		}
		c.Scanner.ExcludeServices = discoverExcludeServices
		c.Scanner.ExcludeKinds = kinds
	}
	if flags.Changed("timeout") {
		c.Scanner.Timeout = discoverTimeout
	}
	if flags.Changed("concurrency") {
		c.Scanner.Concurrency = discoverConcurrency
	}
	return nil
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	if err := checkOutput(discoverOutput); err != nil {
		return err
	}
	if err := applyDiscoverFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.close(context.Background())

	account := eng.account(ctx, discoverAccount)

	scanCtx, scanCancel := context.WithTimeout(ctx, cfg.Scanner.Timeout)
	defer scanCancel()

	log.Info().
		Str("account", account).
		Dur("timeout", cfg.Scanner.Timeout).
		Msg("discovery starting")

	snap, err := eng.discoverer.Discover(scanCtx, account)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	log.Info().
		Str("snapshot", snap.ID).
		Int("resources", snap.Resources.Count()).
		Int("failures", len(snap.Diagnostics)).
		Bool("partial", snap.Partial).
		Dur("duration", snap.Duration).
		Msg("discovery complete")

	if discoverSave {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := emitter.NewStoreEmitter(st).Emit(ctx, snap); err != nil {
			return err
		}
		log.Info().Str("snapshot", snap.ID).Str("path", cfg.Store.Path).Msg("snapshot saved")
	}

	return writeSnapshot(os.Stdout, discoverOutput, snap)
}
