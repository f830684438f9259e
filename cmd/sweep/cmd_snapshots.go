package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/sweep/internal/store"
	"github.com/yairfalse/sweep/pkg/resource"
)

var snapshotsOutput string

// snapshotsCmd represents the snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect stored snapshots",
	Long: `Read snapshots saved by 'sweep discover --save' or 'sweep serve'.

Snapshots are immutable. Use 'latest' in place of an ID for the most
recent one.`,
	Example: `  sweep snapshots list
  sweep snapshots show latest -o table
  sweep snapshots diff <old-id> latest`,
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotsList,
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsShow,
}

var snapshotsDiffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Show resources added, deleted or modified between two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE:  runSnapshotsDiff,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsShowCmd, snapshotsDiffCmd)

	snapshotsCmd.PersistentFlags().StringVarP(&snapshotsOutput, "output", "o", "table", "Output format: json, yaml, table")
}

func openStore() (*store.Store, error) {
	if err := checkOutput(snapshotsOutput); err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Path)
}

func lookup(st *store.Store, id string) (*resource.Snapshot, error) {
	if id == "latest" {
		return st.Latest()
	}
	return st.Get(id)
}

func runSnapshotsList(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	infos, err := st.List()
	if err != nil {
		return err
	}

	if snapshotsOutput != "table" {
		if infos == nil {
			infos = []resource.SnapshotInfo{}
		}
		return writeDocument(os.Stdout, snapshotsOutput, infos)
	}
	writeSnapshotList(os.Stdout, infos)
	return nil
}

func runSnapshotsShow(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	snap, err := lookup(st, args[0])
	if err != nil {
		return err
	}

	if snapshotsOutput != "table" {
		return writeDocument(os.Stdout, snapshotsOutput, snap)
	}
	return writeSnapshot(os.Stdout, snapshotsOutput, snap)
}

func runSnapshotsDiff(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	prev, err := lookup(st, args[0])
	if err != nil {
		return err
	}
	curr, err := lookup(st, args[1])
	if err != nil {
		return err
	}

	diffs := resource.DiffAggregates(prev.Resources, curr.Resources)

	if snapshotsOutput != "table" {
		if diffs == nil {
			diffs = []resource.RecordDiff{}
		}
		return writeDocument(os.Stdout, snapshotsOutput, diffs)
	}
	writeDiffTable(os.Stdout, diffs)
	return nil
}
