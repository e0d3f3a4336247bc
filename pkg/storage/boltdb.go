package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketAttempts = []byte("attempts")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "burrow.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAttempts); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketAttempts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) CreateAttempt(attempt *types.BrokeringAttempt) error {
	if attempt.ID == "" {
		return fmt.Errorf("attempt id is required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		data, err := json.Marshal(attempt)
		if err != nil {
			return err
		}
		return b.Put([]byte(attempt.ID), data)
	})
}

func (s *BoltStore) GetAttempt(id string) (*types.BrokeringAttempt, error) {
	var attempt types.BrokeringAttempt
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("attempt %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &attempt)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// ListAttempts returns every attempt, oldest first
func (s *BoltStore) ListAttempts() ([]*types.BrokeringAttempt, error) {
	return s.list(func(*types.BrokeringAttempt) bool { return true })
}

// ListAttemptsByWorkspace returns the attempts of one workspace, oldest first
func (s *BoltStore) ListAttemptsByWorkspace(workspaceID string) ([]*types.BrokeringAttempt, error) {
	return s.list(func(a *types.BrokeringAttempt) bool {
		return a.RuntimeID.WorkspaceID == workspaceID
	})
}

func (s *BoltStore) list(keep func(*types.BrokeringAttempt) bool) ([]*types.BrokeringAttempt, error) {
	var attempts []*types.BrokeringAttempt
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		return b.ForEach(func(k, v []byte) error {
			var attempt types.BrokeringAttempt
			if err := json.Unmarshal(v, &attempt); err != nil {
				return err
			}
			if keep(&attempt) {
				attempts = append(attempts, &attempt)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.Before(attempts[j].StartedAt)
	})
	return attempts, nil
}

func (s *BoltStore) UpdateAttempt(attempt *types.BrokeringAttempt) error {
	return s.CreateAttempt(attempt) // Same as create (upsert)
}

func (s *BoltStore) DeleteAttempt(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		return b.Delete([]byte(id))
	})
}
