package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"inventory-service/internal/models"
)

// AuditSink receives one record per committed mutation. Appends are
// best-effort: the gateway logs failures but never rolls back the mutation.
type AuditSink interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
}

// FileAuditSink appends newline-delimited JSON records to a log file.
type FileAuditSink struct {
	mu   sync.Mutex
	path string
}

// NewFileAuditSink creates an append-only audit log at the given path.
func NewFileAuditSink(path string) (*FileAuditSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	return &FileAuditSink{path: path}, nil
}

// Append writes one record as a single JSON line.
func (fa *FileAuditSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()

	f, err := os.OpenFile(fa.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}
