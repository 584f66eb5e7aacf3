package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boylston-chess/bcf-monitor/internal/event"
	"github.com/boylston-chess/bcf-monitor/internal/logger"
)

// StorageError wraps a failed read or write of a snapshot file. Save
// failures must reach the caller; a failed save is never reported as success.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists one JSON snapshot file per event id under a data directory.
// It is the only component that touches persisted state.
type Store struct {
	dataDir string
}

// New creates a Store rooted at dataDir, creating the directory if needed.
// A leading "~/" expands to the user's home directory.
func New(dataDir string) (*Store, error) {
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: dataDir, Err: err}
	}

	return &Store{dataDir: dataDir}, nil
}

func (s *Store) snapshotPath(eventID string) string {
	return filepath.Join(s.dataDir, eventID+".json")
}

// Load returns the stored snapshot for an event id, or (nil, nil) when none
// exists yet. Absence is the normal first-check state, not an error.
func (s *Store) Load(eventID string) (*event.Snapshot, error) {
	path := s.snapshotPath(eventID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	var snap event.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &StorageError{Op: "decode", Path: path, Err: err}
	}
	if snap.EventID == "" {
		snap.EventID = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	return &snap, nil
}

// Save overwrites the snapshot for snap.EventID. The write goes through a
// temp file and rename so a crash never leaves a truncated snapshot behind.
func (s *Store) Save(snap *event.Snapshot) error {
	if snap.EventID == "" {
		return &StorageError{Op: "write", Path: s.dataDir, Err: errors.New("snapshot has no event id")}
	}
	path := s.snapshotPath(snap.EventID)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &StorageError{Op: "rename", Path: path, Err: err}
	}

	return nil
}

// List enumerates the event ids with a stored snapshot.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, &StorageError{Op: "readdir", Path: s.dataDir, Err: err}
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// PurgeExpired removes every snapshot whose last event day is strictly
// before asOf and returns the number removed. Expiry is best-effort
// housekeeping: an unreadable or undeletable file is logged and skipped, it
// never fails the run.
func (s *Store) PurgeExpired(asOf time.Time) (int, error) {
	ids, err := s.List()
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		snap, err := s.Load(id)
		if err != nil || snap == nil {
			logger.Warn("skipping unreadable snapshot during purge", logger.Fields{"event_id": id})
			continue
		}
		if !snap.Dates.ExpiredBy(asOf) {
			continue
		}
		if err := os.Remove(s.snapshotPath(id)); err != nil {
			logger.Warn("failed to remove expired snapshot", logger.Fields{"event_id": id, "error": err.Error()})
			continue
		}
		logger.Info("removed expired snapshot", logger.Fields{"event_id": id, "event": snap.Name})
		removed++
	}
	return removed, nil
}
