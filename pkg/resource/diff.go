package resource

import (
	"fmt"
	"sort"
)

// DiffType represents the type of change detected.
type DiffType string

const (
	// DiffAdded indicates a new resource was discovered.
	DiffAdded DiffType = "added"
	// DiffDeleted indicates a resource no longer exists.
	DiffDeleted DiffType = "deleted"
	// DiffModified indicates a resource's attributes changed.
	DiffModified DiffType = "modified"
)

// Change represents a single attribute change.
// The attribute name is the map key in RecordDiff.Changes.
type Change struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// RecordDiff is a detected change for one (region, kind, id) triple.
type RecordDiff struct {
	Type    DiffType          `json:"type"`
	Region  Region            `json:"region"`
	Kind    ServiceKind       `json:"kind"`
	ID      string            `json:"id"`
	Changes map[string]Change `json:"changes,omitempty"`
}

type recordKey struct {
	region Region
	kind   ServiceKind
	id     string
}

// DiffAggregates compares two aggregates. Results are sorted by region, kind, id.
func DiffAggregates(prev, curr Aggregate) []RecordDiff {
	before := index(prev)
	after := index(curr)

	var diffs []RecordDiff
	for key, p := range before {
		c, ok := after[key]
		if !ok {
			diffs = append(diffs, RecordDiff{Type: DiffDeleted, Region: key.region, Kind: key.kind, ID: key.id})
			continue
		}
		if changes := detectChanges(p, c); len(changes) > 0 {
			diffs = append(diffs, RecordDiff{Type: DiffModified, Region: key.region, Kind: key.kind, ID: key.id, Changes: changes})
		}
	}
	for key := range after {
		if _, ok := before[key]; !ok {
			diffs = append(diffs, RecordDiff{Type: DiffAdded, Region: key.region, Kind: key.kind, ID: key.id})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		a, b := diffs[i], diffs[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return diffs
}

func index(a Aggregate) map[recordKey]Record {
	m := make(map[recordKey]Record)
	for region, services := range a {
		for kind, records := range services {
			for _, r := range records {
				m[recordKey{region, kind, r.ID}] = r
			}
		}
	}
	return m
}

// detectChanges compares attributes by their printed form so values that
// went through a JSON round trip still compare equal.
func detectChanges(prev, curr Record) map[string]Change {
	changes := make(map[string]Change)
	for k, pv := range prev.Attrs {
		cv, ok := curr.Attrs[k]
		if !ok {
			changes[k] = Change{Previous: fmt.Sprint(pv)}
			continue
		}
		if fmt.Sprint(pv) != fmt.Sprint(cv) {
			changes[k] = Change{Previous: fmt.Sprint(pv), Current: fmt.Sprint(cv)}
		}
	}
	for k, cv := range curr.Attrs {
		if _, ok := prev.Attrs[k]; !ok {
			changes[k] = Change{Current: fmt.Sprint(cv)}
		}
	}
	return changes
}
