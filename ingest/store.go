package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a store path does not resolve to a file.
var ErrNotFound = errors.New("file not found in store")

// FileStore keeps raw upload bytes on local disk under a base directory,
// addressed by relative store paths. Uploads are first staged to a temp file
// (hashing while copying, so large files never sit in memory) and promoted
// to a permanent path only once intake decides the bytes are new.
type FileStore struct {
	base string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(base string) (*FileStore, error) {
	if base == "" {
		base = "uploads"
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", base, err)
	}
	return &FileStore{base: base}, nil
}

// Stage copies r into a temporary file inside the store, returning the temp
// path and the hex SHA-256 of the copied bytes.
func (s *FileStore) Stage(r io.Reader) (tmpPath, hash string, err error) {
	tmp, err := os.CreateTemp(s.base, ".staged-*")
	if err != nil {
		return "", "", fmt.Errorf("stage upload: %w", err)
	}
	h := sha256.New()
	_, err = io.Copy(tmp, io.TeeReader(r, h))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", fmt.Errorf("stage upload: %w", err)
	}
	return tmp.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

// Promote moves a staged file to its permanent store path, derived from the
// client file name with a random prefix to avoid collisions.
func (s *FileStore) Promote(tmpPath, fileName string) (storePath string, err error) {
	storePath = uuid.New().String() + "_" + filepath.Base(fileName)
	if err := os.Rename(tmpPath, filepath.Join(s.base, storePath)); err != nil {
		return "", fmt.Errorf("promote staged upload: %w", err)
	}
	return storePath, nil
}

// Discard removes a staged file that will not be promoted.
func (s *FileStore) Discard(tmpPath string) {
	_ = os.Remove(tmpPath)
}

// Exists reports whether a store path currently resolves to a file.
func (s *FileStore) Exists(storePath string) bool {
	_, err := os.Stat(filepath.Join(s.base, storePath))
	return err == nil
}

// Open opens the file at storePath for reading. Returns ErrNotFound when the
// path does not resolve.
func (s *FileStore) Open(storePath string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.base, storePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storePath)
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes the file at storePath. Removing a missing file is not an
// error: deletion is idempotent.
func (s *FileStore) Remove(storePath string) error {
	err := os.Remove(filepath.Join(s.base, storePath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
