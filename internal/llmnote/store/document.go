package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DocumentBackend stores each collection as one JSON document in a directory.
// Writes go to a temp file that is renamed over the document, so readers see
// either the previous or the new document, never a partial one.
type DocumentBackend struct {
	baseDir string
	mu      sync.Mutex
}

// NewDocumentBackend creates a document backend rooted at baseDir.
func NewDocumentBackend(baseDir string) (*DocumentBackend, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("document store directory must be provided")
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create document store directory: %w", err)
	}

	return &DocumentBackend{baseDir: baseDir}, nil
}

// Path returns the document path used for the named collection.
func (b *DocumentBackend) Path(name string) string {
	return filepath.Join(b.baseDir, sanitizeName(name)+".json")
}

func (b *DocumentBackend) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	return data, nil
}

func (b *DocumentBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(b.baseDir, sanitizeName(name)+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp document: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync temp document: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp document: %w", err)
	}

	if err := os.Rename(tmp.Name(), b.Path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist document %s: %w", name, err)
	}

	return nil
}

func (b *DocumentBackend) Close() error { return nil }

func sanitizeName(value string) string {
	if value == "" {
		return "_"
	}

	var builder strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	return builder.String()
}

var _ Backend = (*DocumentBackend)(nil)
