package discovery

import (
	"sync"

	"github.com/yairfalse/sweep/pkg/resource"
)

// Assembler folds probe results into one aggregate. It is the only shared
// mutable state of a scan.
type Assembler struct {
	mu    sync.Mutex
	agg   resource.Aggregate
	diag  *Diagnostics
	folds int
}

// NewAssembler creates an assembler that forwards failures to diag.
func NewAssembler(diag *Diagnostics) *Assembler {
	return &Assembler{
		agg:  make(resource.Aggregate),
		diag: diag,
	}
}

// Fold merges one probe outcome. Failed and empty results leave no slot
// behind; records are kept in the order the probe returned them.
func (a *Assembler) Fold(region resource.Region, kind resource.ServiceKind, result resource.ProbeResult) {
	if !result.OK() {
		f := *result.Failure
		if f.Region == "" {
			f.Region = region
		}
		if !f.Service.Valid() {
			f.Service = kind
		}
		a.diag.Record(&f)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.folds++
	if result.OK() {
		a.agg.Add(region, kind, result.Records)
	}
}

// Folds returns how many results have been folded.
func (a *Assembler) Folds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.folds
}

// Aggregate returns a deep copy of the current aggregate.
func (a *Assembler) Aggregate() resource.Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agg.Clone()
}
