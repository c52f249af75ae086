package carddb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// ErrCacheMiss is returned by a Cache that holds no entry for a key.
var ErrCacheMiss = errors.New("cache miss")

// Cache persists looked-up cards between runs.
type Cache interface {
	// Get returns the card stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*CardInfo, error)

	// Set stores card under key.
	Set(ctx context.Context, key string, card *CardInfo) error

	// Clear removes every cached card.
	Clear(ctx context.Context) error

	// Close releases the underlying store.
	Close() error
}

const cardsBucket = "cards"

// DefaultCachePath returns ~/.cache/card-scanner/cards.db, or a path in the
// working directory when no home directory is known.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".card-scanner-cache", "cards.db")
	}
	return filepath.Join(home, ".cache", "card-scanner", "cards.db")
}

// BoltCache implements Cache on a local bbolt file.
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache opens (or creates) the cache database at path. Missing parent
// directories are created.
func NewBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cardsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Get returns the card stored under key.
func (b *BoltCache) Get(_ context.Context, key string) (*CardInfo, error) {
	var card *CardInfo
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(cardsBucket)).Get([]byte(key))
		if data == nil {
			return ErrCacheMiss
		}
		return json.Unmarshal(data, &card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Set stores card under key.
func (b *BoltCache) Set(_ context.Context, key string, card *CardInfo) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshaling card: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cardsBucket)).Put([]byte(key), data)
	})
}

// Clear drops and recreates the cards bucket.
func (b *BoltCache) Clear(_ context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(cardsBucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(cardsBucket))
		return err
	})
}

// Len returns the number of cached cards.
func (b *BoltCache) Len() int {
	n := 0
	b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(cardsBucket)).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the database file.
func (b *BoltCache) Close() error {
	return b.db.Close()
}
