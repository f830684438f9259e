package emitter

import (
	"context"
	"fmt"

	"github.com/yairfalse/sweep/pkg/resource"
)

// SnapshotWriter persists snapshots.
type SnapshotWriter interface {
	Put(snap *resource.Snapshot) error
}

// StoreEmitter saves every emitted snapshot. The writer is owned by the
// caller and is not closed by Close.
type StoreEmitter struct {
	w SnapshotWriter
}

// NewStoreEmitter creates an emitter that writes to w.
func NewStoreEmitter(w SnapshotWriter) *StoreEmitter {
	return &StoreEmitter{w: w}
}

// Emit persists the snapshot.
func (e *StoreEmitter) Emit(_ context.Context, snap *resource.Snapshot) error {
	if err := e.w.Put(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Close is a no-op.
func (e *StoreEmitter) Close() error {
	return nil
}
