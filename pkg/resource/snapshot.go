package resource

import "time"

// Snapshot is the immutable result of one Discover call.
type Snapshot struct {
	ID          string        `json:"id" yaml:"id"`
	Account     string        `json:"account" yaml:"account"`
	Anchor      Region        `json:"anchor" yaml:"anchor"`
	Regions     []Region      `json:"regions" yaml:"regions"` // as enumerated, before filtering
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Partial     bool          `json:"partial" yaml:"partial"` // deadline hit before all probes finished
	Resources   Aggregate     `json:"resources" yaml:"resources"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// SnapshotInfo is the listing form of a stored snapshot.
type SnapshotInfo struct {
	ID          string        `json:"id"`
	Account     string        `json:"account"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Partial     bool          `json:"partial"`
	Resources   int           `json:"resources"`
	Diagnostics int           `json:"diagnostics"`
}

// Info summarizes the snapshot.
func (s *Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		ID:          s.ID,
		Account:     s.Account,
		StartedAt:   s.StartedAt,
		Duration:    s.Duration,
		Partial:     s.Partial,
		Resources:   s.Resources.Count(),
		Diagnostics: len(s.Diagnostics),
	}
}
