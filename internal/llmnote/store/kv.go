package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var collectionsBucket = []byte("collections")

// KVBackend stores every collection as a single blob under one key of a bbolt
// database. Writing a collection replaces the whole blob under its key.
//
// bbolt holds an exclusive file lock, so a second process opening the same file
// times out instead of silently sharing it.
type KVBackend struct {
	db *bolt.DB
}

// NewKVBackend opens (or creates) the bbolt database at path.
func NewKVBackend(path string) (*KVBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create kv store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open kv store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(collectionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	return &KVBackend{db: db}, nil
}

func (b *KVBackend) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionsBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(name)); v != nil {
			// bbolt values are only valid inside the transaction.
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read kv key %s: %w", name, err)
	}
	return out, nil
}

func (b *KVBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionsBucket)
		if bucket == nil {
			return errors.New("collections bucket missing")
		}
		return bucket.Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("write kv key %s: %w", name, err)
	}
	return nil
}

func (b *KVBackend) Close() error {
	return b.db.Close()
}

var _ Backend = (*KVBackend)(nil)
