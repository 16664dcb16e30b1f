package storage

import "context"

// Storage persists opaque snapshots by key. Put replaces the whole value;
// there is no partial update or merge.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
