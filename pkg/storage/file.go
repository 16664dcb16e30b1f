package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/absmach/flcoord/pkg/artifact"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
)

const fileExt = ".json"

// fileStorage keeps each snapshot in <dir>/<key>.json. Writes go through a
// temp file and rename, so a reader never observes a half-written snapshot.
type fileStorage struct {
	mu  sync.RWMutex
	dir string
}

func NewFileStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &fileStorage{dir: dir}, nil
}

func (fs *fileStorage) Get(_ context.Context, key string) ([]byte, error) {
	path, err := fs.path(key)
	if err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return data, nil
}

func (fs *fileStorage) Put(_ context.Context, key string, value []byte) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	return artifact.WriteFileAtomic(path, value)
}

func (fs *fileStorage) Delete(_ context.Context, key string) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return nil
}

func (fs *fileStorage) Close() error {
	return nil
}

func (fs *fileStorage) path(key string) (string, error) {
	if key == "" {
		return "", pkgerrors.ErrEmptyKey
	}
	if err := artifact.ValidateName(key); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(fs.dir, key+fileExt), nil
}
