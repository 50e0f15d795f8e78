// Package localfs serves blobs from a local directory tree, mirroring the
// container/blob layout of the hosted object store. Intended for local
// development and tests.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = "./data/blobs"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) Download(_ context.Context, container, blob string) (io.ReadCloser, error) {
	path := filepath.Join(s.basePath, container, blob)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s/%s: %w", container, blob, err)
	}
	return f, nil
}

// Save writes a blob under the container directory. Used by tests and local
// seeding tools.
func (s *Store) Save(_ context.Context, container, blob string, data io.Reader) error {
	dir := filepath.Join(s.basePath, container)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create container dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, blob))
	if err != nil {
		return fmt.Errorf("create blob file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}
