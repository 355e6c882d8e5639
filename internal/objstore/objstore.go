// Package objstore stores uploaded receipt images on local disk, keyed by
// an opaque object key so callers never hand paths to the filesystem.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")

// maxObjectSize caps a single upload at 5 MiB.
const maxObjectSize = 5 << 20

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("image directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the object and returns its key. The original filename only
// contributes its extension; the key itself is random.
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	key := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, maxObjectSize+1))
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if n > maxObjectSize {
		os.Remove(f.Name())
		return "", errors.New("image too large")
	}
	return key, nil
}

// Open returns a reader for the stored object.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	p, err := s.safePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

// Remove deletes the stored object. Missing objects are not an error.
func (s *Store) Remove(key string) error {
	p, err := s.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// safePath rejects keys that would escape the store directory.
func (s *Store) safePath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
