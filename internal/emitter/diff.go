package emitter

import (
	"sync"

	"github.com/yairfalse/sweep/pkg/resource"
)

// DiffTracker keeps the previous aggregate and reports changes against it.
type DiffTracker struct {
	mu          sync.RWMutex
	previous    resource.Aggregate
	initialized bool
}

// NewDiffTracker creates a new diff tracker.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{}
}

// ComputeDiff compares current against the previous aggregate.
// Returns nil on the first call (baseline establishment) and an empty
// slice when nothing changed.
func (d *DiffTracker) ComputeDiff(current resource.Aggregate) []resource.RecordDiff {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil
	}

	diffs := resource.DiffAggregates(d.previous, current)
	if diffs == nil {
		diffs = []resource.RecordDiff{}
	}
	return diffs
}

// Update stores current as the baseline for the next comparison.
func (d *DiffTracker) Update(current resource.Aggregate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.previous = current.Clone()
	d.initialized = true
}
