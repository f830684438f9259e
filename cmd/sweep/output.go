package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/sweep/pkg/resource"
)

var validOutputs = []string{"json", "yaml", "table"}

func checkOutput(format string) error {
	if !slices.Contains(validOutputs, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			format, strings.Join(validOutputs, ", "))
	}
	return nil
}

// writeDocument encodes v as JSON or YAML.
func writeDocument(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// writeSnapshot prints the aggregate in the chosen format. The table form
// adds a summary and the failures.
func writeSnapshot(w io.Writer, format string, snap *resource.Snapshot) error {
	if format != "table" {
		return writeDocument(w, format, snap.Resources)
	}

	_, _ = fmt.Fprintf(w, "Account %s, anchor %s, %d regions enabled\n",
		snap.Account, snap.Anchor, len(snap.Regions))
	if snap.Partial {
		_, _ = fmt.Fprintln(w, "Partial: deadline reached before every probe finished")
	}
	_, _ = fmt.Fprintln(w)

	writeResourceTable(w, snap.Resources)

	if len(snap.Diagnostics) > 0 {
		_, _ = fmt.Fprintln(w)
		writeDiagnosticsTable(w, snap.Diagnostics)
	}

	_, _ = fmt.Fprintf(w, "\n%d resources in %s\n", snap.Resources.Count(), snap.Duration.Round(time.Millisecond))
	return nil
}

// summary columns tried in order; first present wins
var (
	detailKeys = []string{"name", "type", "runtime", "engine", "cidr"}
	statusKeys = []string{"state", "status"}
)

func writeResourceTable(w io.Writer, agg resource.Aggregate) {
	if agg.Count() == 0 {
		_, _ = fmt.Fprintln(w, "No resources found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "REGION\tSERVICE\tID\tDETAIL\tSTATUS")
	_, _ = fmt.Fprintln(tw, "------\t-------\t--\t------\t------")

	for _, region := range agg.Regions() {
		for _, kind := range agg.Kinds(region) {
			for _, r := range agg.Get(region, kind) {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					region,
					kind.Label(),
					truncate(r.ID, 40),
					truncate(firstAttr(r, detailKeys), 30),
					firstAttr(r, statusKeys),
				)
			}
		}
	}
	_ = tw.Flush()
}

func writeDiagnosticsTable(w io.Writer, diags []resource.Diagnostic) {
	_, _ = fmt.Fprintf(w, "Failures (%d):\n", len(diags))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KIND\tCAUSE\tREGION\tSERVICE\tRESOURCE\tMESSAGE")
	for _, d := range diags {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Kind, d.Cause, orDash(string(d.Region)), orDash(d.Service), orDash(d.Resource), truncate(d.Message, 60))
	}
	_ = tw.Flush()
}

func writeSnapshotList(w io.Writer, infos []resource.SnapshotInfo) {
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(w, "No snapshots stored.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tACCOUNT\tSTARTED\tDURATION\tRESOURCES\tFAILURES\tPARTIAL")
	for _, info := range infos {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
			info.ID,
			info.Account,
			info.StartedAt.UTC().Format(time.RFC3339),
			info.Duration.Round(time.Millisecond),
			info.Resources,
			info.Diagnostics,
			info.Partial,
		)
	}
	_ = tw.Flush()
}

func writeDiffTable(w io.Writer, diffs []resource.RecordDiff) {
	if len(diffs) == 0 {
		_, _ = fmt.Fprintln(w, "No changes.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CHANGE\tREGION\tSERVICE\tID\tFIELDS")
	for _, d := range diffs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.Type, d.Region, d.Kind.Label(), truncate(d.ID, 40), describeChanges(d.Changes))
	}
	_ = tw.Flush()
}

func describeChanges(changes map[string]resource.Change) string {
	if len(changes) == 0 {
		return "-"
	}
	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		c := changes[field]
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", field, c.Previous, c.Current))
	}
	return strings.Join(parts, ", ")
}

func firstAttr(r resource.Record, keys []string) string {
	for _, k := range keys {
		if v := r.Str(k); v != "" && v != resource.NotAvailable {
			return v
		}
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
