package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweep/pkg/resource"
)

// mockEmitter implements Emitter for testing.
type mockEmitter struct {
	emitCalls  int
	closeCalls int
	emitErr    error
	closeErr   error
	snapshots  []*resource.Snapshot
}

func (m *mockEmitter) Emit(_ context.Context, snap *resource.Snapshot) error {
	m.emitCalls++
	m.snapshots = append(m.snapshots, snap)
	return m.emitErr
}

func (m *mockEmitter) Close() error {
	m.closeCalls++
	return m.closeErr
}

// mockWriter implements SnapshotWriter for testing.
type mockWriter struct {
	PutFunc func(snap *resource.Snapshot) error
	puts    []string
}

func (m *mockWriter) Put(snap *resource.Snapshot) error {
	m.puts = append(m.puts, snap.ID)
	if m.PutFunc != nil {
		return m.PutFunc(snap)
	}
	return nil
}

func testSnapshot(id string) *resource.Snapshot {
	agg := make(resource.Aggregate)
	agg.Add("us-east-1", resource.Compute, []resource.Record{resource.NewRecord("i-123")})
	return &resource.Snapshot{
		ID:        id,
		StartedAt: time.Now(),
		Duration:  time.Second,
		Resources: agg,
	}
}

func TestMultiEmitter_Emit(t *testing.T) {
	e1 := &mockEmitter{}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Emit(context.Background(), testSnapshot("s1"))

	require.NoError(t, err)
	assert.Equal(t, 1, e1.emitCalls)
	assert.Equal(t, 1, e2.emitCalls)
	assert.Len(t, e1.snapshots, 1)
	assert.Len(t, e2.snapshots, 1)
}

func TestMultiEmitter_Emit_Error(t *testing.T) {
	e1 := &mockEmitter{emitErr: errors.New("emit failed")}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Emit(context.Background(), testSnapshot("s1"))

	assert.Error(t, err)
	assert.Equal(t, 1, e1.emitCalls)
	assert.Equal(t, 0, e2.emitCalls) // Should stop on first error
}

func TestMultiEmitter_Close(t *testing.T) {
	e1 := &mockEmitter{}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Close()

	require.NoError(t, err)
	assert.Equal(t, 1, e1.closeCalls)
	assert.Equal(t, 1, e2.closeCalls)
}

func TestMultiEmitter_Close_Error(t *testing.T) {
	e1 := &mockEmitter{closeErr: errors.New("close failed")}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Close()

	assert.Error(t, err)
	assert.Equal(t, 1, e1.closeCalls)
	assert.Equal(t, 0, e2.closeCalls) // Should stop on first error
}

func TestMultiEmitter_Empty(t *testing.T) {
	multi := NewMultiEmitter()

	err := multi.Emit(context.Background(), testSnapshot("s1"))
	require.NoError(t, err)

	err = multi.Close()
	require.NoError(t, err)
}

func TestStoreEmitter_Emit(t *testing.T) {
	w := &mockWriter{}
	e := NewStoreEmitter(w)

	require.NoError(t, e.Emit(context.Background(), testSnapshot("s1")))
	require.NoError(t, e.Emit(context.Background(), testSnapshot("s2")))
	assert.Equal(t, []string{"s1", "s2"}, w.puts)
	assert.NoError(t, e.Close())
}

func TestStoreEmitter_Error(t *testing.T) {
	w := &mockWriter{PutFunc: func(*resource.Snapshot) error { return errors.New("disk full") }}

	err := NewStoreEmitter(w).Emit(context.Background(), testSnapshot("s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save snapshot")
}
