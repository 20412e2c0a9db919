package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
)

const snapshotVersion = 1

var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is the on-disk form of a crawl result.
type Snapshot struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Result  *models.Result `json:"result"`
}

// ResultStore keeps the latest crawl result in a JSON file so it can be
// re-exported later.
type ResultStore struct {
	mu       sync.RWMutex
	filename string
}

func NewResultStore(filename string) *ResultStore {
	return &ResultStore{filename: filename}
}

func (s *ResultStore) Path() string { return s.filename }

func (s *ResultStore) Save(result *models.Result) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(Snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now(),
		Result:  result,
	}, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Write to temp file first for atomicity
	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filename)
}

func (s *ResultStore) Load() (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, s.filename)
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.filename, err)
	}
	if snap.Result == nil {
		return nil, fmt.Errorf("%w: %s has no result", ErrNoSnapshot, s.filename)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, snapshotVersion)
	}
	return snap.Result, nil
}
