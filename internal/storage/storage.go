// Package storage provides persistent model and report storage for the
// scoring pipeline. It uses BoltDB as the underlying engine: fitted models
// and evaluation reports are stored as JSON blobs in dedicated buckets,
// keyed by a caller-chosen handle.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"mpscore/internal/calib"
	"mpscore/internal/model"
)

const (
	modelsBucket  = "models"  // fitted model snapshots
	reportsBucket = "reports" // evaluation reports
)

// ModelSnapshot is the serialized form of a trained (optionally calibrated)
// scorer: the fingerprint parameters it expects, the fitted forest, and the
// calibration parameters when present.
type ModelSnapshot struct {
	SavedAt     time.Time         `json:"savedAt"`
	FPRadius    int               `json:"fpRadius"`
	FPBitLength int               `json:"fpBitLength"`
	Forest      *model.Forest     `json:"forest"`
	Calibration *calib.Calibrator `json:"calibration,omitempty"`
}

// Store persists models and reports in a BoltDB file.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path and ensures the buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(reportsBucket)); err != nil {
			return fmt.Errorf("create reports bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveModel stores a snapshot under the given handle, overwriting any
// previous snapshot with the same handle.
func (s *Store) SaveModel(handle string, snap *ModelSnapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal model snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).Put([]byte(handle), data)
	})
}

// LoadModel retrieves the snapshot stored under the given handle.
func (s *Store) LoadModel(handle string) (*ModelSnapshot, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(modelsBucket)).Get([]byte(handle))
		if v == nil {
			return fmt.Errorf("no model stored under handle %q", handle)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	snap := &ModelSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("unmarshal model snapshot: %w", err)
	}
	return snap, nil
}

// SaveReport stores an arbitrary JSON-marshalable evaluation report.
func (s *Store) SaveReport(handle string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportsBucket)).Put([]byte(handle), data)
	})
}

// LoadReport retrieves a stored report into out.
func (s *Store) LoadReport(handle string, out any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(reportsBucket)).Get([]byte(handle))
		if v == nil {
			return fmt.Errorf("no report stored under handle %q", handle)
		}
		return json.Unmarshal(v, out)
	})
}

// Handles lists the model handles currently stored.
func (s *Store) Handles() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}
