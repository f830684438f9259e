package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweep/pkg/resource"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sweep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshot(id string, started time.Time) *resource.Snapshot {
	agg := make(resource.Aggregate)
	agg.Add("us-east-1", resource.Compute, []resource.Record{
		resource.NewRecord("i-1").Set("state", "running"),
	})
	agg.Add("us-east-1", resource.Function, []resource.Record{
		resource.NewRecord("resize").Set("memory", int64(128)),
	})
	return &resource.Snapshot{
		ID:        id,
		Account:   "123456789012",
		Anchor:    "us-east-1",
		Regions:   []resource.Region{"us-east-1", "eu-west-1"},
		StartedAt: started,
		Duration:  3 * time.Second,
		Resources: agg,
		Diagnostics: []resource.Diagnostic{
			{Kind: "expected", Cause: "authorization", Region: "eu-west-1", Service: "RDS", Message: "denied"},
		},
	}
}

func TestStore_PutGet(t *testing.T) {
	s := openTemp(t)
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	want := snapshot("snap-1", started)

	require.NoError(t, s.Put(want))

	got, err := s.Get("snap-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Account, got.Account)
	assert.Equal(t, want.Anchor, got.Anchor)
	assert.Equal(t, want.Regions, got.Regions)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, want.Duration, got.Duration)
	assert.Equal(t, want.Diagnostics, got.Diagnostics)
	assert.True(t, want.Resources.Equal(got.Resources), "resources differ: %v", got.Resources)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTemp(t)

	_, err := s.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_PutDuplicate(t *testing.T) {
	s := openTemp(t)
	snap := snapshot("snap-1", time.Now())

	require.NoError(t, s.Put(snap))
	assert.Error(t, s.Put(snap))
}

func TestStore_PutEmptyID(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Put(&resource.Snapshot{}))
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(snapshot("b", base.Add(time.Hour))))
	require.NoError(t, s.Put(snapshot("a", base)))
	require.NoError(t, s.Put(snapshot("c", base.Add(2*time.Hour))))

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "c", infos[0].ID)
	assert.Equal(t, "b", infos[1].ID)
	assert.Equal(t, "a", infos[2].ID)
	assert.Equal(t, 2, infos[0].Resources)
	assert.Equal(t, 1, infos[0].Diagnostics)
}

func TestStore_Latest(t *testing.T) {
	s := openTemp(t)

	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(snapshot("old", base)))
	require.NoError(t, s.Put(snapshot("new", base.Add(time.Minute))))

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(snapshot("persisted", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get("persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.ID)
}
