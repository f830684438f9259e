package discovery

import (
	"cmp"
	"sync"

	"github.com/google/btree"
	"github.com/rs/zerolog"

	"github.com/yairfalse/sweep/pkg/resource"
)

// Diagnostics collects the failures of one scan. Entries come back in
// (region, service, resource) order regardless of completion order.
type Diagnostics struct {
	mu     sync.Mutex
	log    zerolog.Logger
	index  *btree.BTreeG[diagEntry]
	counts map[resource.FailureKind]int
	seq    uint64
}

type diagEntry struct {
	kind    resource.ServiceKind
	diag    resource.Diagnostic
	failure resource.FailureKind
	seq     uint64
}

func lessEntry(a, b diagEntry) bool {
	if c := cmp.Compare(a.diag.Region, b.diag.Region); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.diag.Resource, b.diag.Resource); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.failure, b.failure); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.diag.Cause, b.diag.Cause); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.diag.Message, b.diag.Message); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// NewDiagnostics creates an empty collector that logs through log.
func NewDiagnostics(log zerolog.Logger) *Diagnostics {
	return &Diagnostics{
		log:    log,
		index:  btree.NewG[diagEntry](16, lessEntry),
		counts: make(map[resource.FailureKind]int),
	}
}

// Record stores f and logs it. Expected and partial-field failures log at
// warn, everything else at error.
func (d *Diagnostics) Record(f *resource.Failure) {
	if f == nil {
		return
	}

	d.mu.Lock()
	d.seq++
	d.index.ReplaceOrInsert(diagEntry{
		kind:    f.Service,
		diag:    f.Diagnostic(),
		failure: f.Kind,
		seq:     d.seq,
	})
	d.counts[f.Kind]++
	d.mu.Unlock()

	var event *zerolog.Event
	switch f.Kind {
	case resource.ExpectedLocal, resource.PartialField:
		event = d.log.Warn()
	default:
		event = d.log.Error()
	}
	if f.Region != "" {
		event = event.Str("region", string(f.Region))
	}
	if f.Service.Valid() {
		event = event.Str("service", f.Service.Label())
	}
	if f.Resource != "" {
		event = event.Str("resource", f.Resource)
	}
	if f.Code != "" {
		event = event.Str("code", f.Code)
	}
	event.
		Str("kind", f.Kind.String()).
		Str("cause", string(f.Cause)).
		Err(f.Err).
		Msg(failureMessage(f.Kind))
}

func failureMessage(kind resource.FailureKind) string {
	switch kind {
	case resource.Fatal:
		return "discovery aborted"
	case resource.ExpectedLocal:
		return "probe skipped"
	case resource.PartialField:
		return "attribute unavailable"
	default:
		return "probe failed"
	}
}

// Entries returns the recorded diagnostics in order.
func (d *Diagnostics) Entries() []resource.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]resource.Diagnostic, 0, d.index.Len())
	d.index.Ascend(func(e diagEntry) bool {
		out = append(out, e.diag)
		return true
	})
	return out
}

// Count returns how many failures of kind were recorded.
func (d *Diagnostics) Count(kind resource.FailureKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[kind]
}

// Len returns the total number of recorded failures.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index.Len()
}
