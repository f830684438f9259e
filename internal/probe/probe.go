// Package probe defines the per-service probe descriptors driven by discovery.
package probe

import (
	"context"
	"fmt"

	"github.com/yairfalse/sweep/pkg/resource"
)

// Scope says where a probe runs.
type Scope uint8

const (
	// Regional probes run once per enumerated region.
	Regional Scope = iota
	// Global probes list account-wide resources and run once, in the anchor region.
	Global
)

func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return "regional"
}

// Func lists every resource of one kind in one region, paging until exhausted.
type Func func(ctx context.Context, region resource.Region) ([]resource.Record, error)

// Probe is one entry in the dispatch table.
type Probe struct {
	Kind  resource.ServiceKind
	Scope Scope
	Run   Func
}

// Table is the fixed set of probes a scan invokes. Adding a service means
// adding an entry, not a code path.
type Table []Probe

// Validate checks that every kind is valid, appears once, and has a Run func.
func (t Table) Validate() error {
	seen := make(map[resource.ServiceKind]bool, len(t))
	for _, p := range t {
		if !p.Kind.Valid() {
			return fmt.Errorf("probe: invalid kind %d", uint8(p.Kind))
		}
		if seen[p.Kind] {
			return fmt.Errorf("probe: duplicate kind %s", p.Kind)
		}
		if p.Run == nil {
			return fmt.Errorf("probe: %s has no run func", p.Kind)
		}
		seen[p.Kind] = true
	}
	return nil
}

// Without returns a copy of t minus the given kinds.
func (t Table) Without(kinds ...resource.ServiceKind) Table {
	skip := make(map[resource.ServiceKind]bool, len(kinds))
	for _, k := range kinds {
		skip[k] = true
	}
	out := make(Table, 0, len(t))
	for _, p := range t {
		if !skip[p.Kind] {
			out = append(out, p)
		}
	}
	return out
}

// Kinds returns the kinds in table order.
func (t Table) Kinds() []resource.ServiceKind {
	kinds := make([]resource.ServiceKind, len(t))
	for i, p := range t {
		kinds[i] = p.Kind
	}
	return kinds
}

// Reporter receives partial-field failures raised while enriching records.
type Reporter interface {
	Report(f *resource.Failure)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(f *resource.Failure)

func (fn ReporterFunc) Report(f *resource.Failure) { fn(f) }

type reporterKey struct{}

// WithReporter attaches r to ctx.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

// ReporterFrom returns the reporter attached to ctx, or one that drops everything.
func ReporterFrom(ctx context.Context) Reporter {
	if r, ok := ctx.Value(reporterKey{}).(Reporter); ok && r != nil {
		return r
	}
	return ReporterFunc(func(*resource.Failure) {})
}
