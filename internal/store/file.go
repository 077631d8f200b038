package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"inventory-service/internal/models"
)

// FileStore persists the snapshot as a single JSON file. Replace writes a
// temp file in the same directory and renames it over the canonical path, so
// a crash mid-write leaves either the fully-old or fully-new snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed snapshot store at the given path.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads and decodes the snapshot. A missing file is an empty snapshot,
// not an error, so a fresh deployment starts clean.
func (fs *FileStore) Load(ctx context.Context) (*models.Snapshot, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return &models.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var sn models.Snapshot
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &sn, nil
}

// Replace atomically swaps the canonical snapshot for the given one.
func (fs *FileStore) Replace(ctx context.Context, sn *models.Snapshot) error {
	data, err := json.MarshalIndent(sn, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
