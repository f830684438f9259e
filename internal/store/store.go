// Package store persists snapshots in a local bbolt database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/yairfalse/sweep/pkg/resource"
)

// Bucket names in bbolt
var (
	bucketSnapshots = []byte("snapshots")
	bucketTimeline  = []byte("timeline")
)

// ErrNotFound is returned when a snapshot ID is not stored.
var ErrNotFound = errors.New("snapshot not found")

// Store is a bbolt-backed snapshot store. Snapshots are immutable once put.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketTimeline} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// timelineKey sorts lexically by start time, then ID.
func timelineKey(snap *resource.Snapshot) []byte {
	return []byte(snap.StartedAt.UTC().Format("2006-01-02T15:04:05.000000000Z") + "/" + snap.ID)
}

// Put stores a snapshot. Storing the same ID twice is an error.
func (s *Store) Put(snap *resource.Snapshot) error {
	if snap.ID == "" {
		return errors.New("put snapshot: empty id")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketSnapshots)
		if snapshots.Get([]byte(snap.ID)) != nil {
			return fmt.Errorf("put snapshot %s: already exists", snap.ID)
		}
		if err := snapshots.Put([]byte(snap.ID), data); err != nil {
			return fmt.Errorf("put snapshot: %w", err)
		}
		if err := tx.Bucket(bucketTimeline).Put(timelineKey(snap), []byte(snap.ID)); err != nil {
			return fmt.Errorf("index snapshot: %w", err)
		}
		return nil
	})
}

// Get returns the snapshot with the given ID.
func (s *Store) Get(id string) (*resource.Snapshot, error) {
	var snap *resource.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var err error
		snap, err = decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns summaries of all snapshots, newest first.
func (s *Store) List() ([]resource.SnapshotInfo, error) {
	var infos []resource.SnapshotInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketSnapshots)
		c := tx.Bucket(bucketTimeline).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			data := snapshots.Get(id)
			if data == nil {
				continue
			}
			snap, err := decode(data)
			if err != nil {
				return err
			}
			infos = append(infos, snap.Info())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Latest returns the most recent snapshot.
func (s *Store) Latest() (*resource.Snapshot, error) {
	var snap *resource.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, id := tx.Bucket(bucketTimeline).Cursor().Last()
		if id == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketSnapshots).Get(id)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var err error
		snap, err = decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func decode(data []byte) (*resource.Snapshot, error) {
	var snap resource.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
