// Package storage persists uploaded images and implements the
// write-file-then-row upload protocol shared by avatars, identity images and
// check-in images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

var ErrBlobNotFound = apperr.New(apperr.NotFound, "file not found")

// BlobStore saves and removes opaque blobs addressed by a relative path
type BlobStore interface {
	Save(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// LocalStore keeps blobs on the local filesystem under a root directory
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the directory blobs are stored under
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Save(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return storageError("create directory", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return storageError("write file", err)
	}
	return nil
}

func (s *LocalStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, storageError("read file", err)
	}
	return data, nil
}

// Delete removes path; a missing file is not an error
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("delete file", err)
	}
	return nil
}

// resolve maps a relative blob path to a file inside root
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", storageError("resolve path", fmt.Errorf("invalid blob path %q", path))
	}
	return filepath.Join(s.root, clean), nil
}

func storageError(op string, err error) error {
	return apperr.Wrap(apperr.Storage, "failed to "+op, err)
}
