package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const postedBucket = "posted"

// boltStore implements a Store backed by BoltDB, keyed by URL.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create storage directory: %v", domain.ErrStorage, err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bbolt db: %v", domain.ErrStorage, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(postedBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init bucket: %v", domain.ErrStorage, err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// ReadRecords returns every stored record ordered by send time.
func (b *boltStore) ReadRecords(_ context.Context) ([]domain.DedupRecord, error) {
	var records []domain.DedupRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postedBucket))
		if bucket == nil {
			return fmt.Errorf("posted bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			sentAt, err := parseSendTime(string(v))
			if err != nil {
				return fmt.Errorf("record %q: %w", k, err)
			}
			records = append(records, domain.DedupRecord{URL: string(k), SentAt: sentAt})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read bbolt records: %v", domain.ErrStorage, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SentAt.Before(records[j].SentAt)
	})
	return records, nil
}

// WriteRecords replaces the bucket contents in one transaction. When a URL appears more than
// once the latest send time wins.
func (b *boltStore) WriteRecords(_ context.Context, records []domain.DedupRecord) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(postedBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		bucket, err := tx.CreateBucket([]byte(postedBucket))
		if err != nil {
			return err
		}

		latest := make(map[string]time.Time, len(records))
		for _, r := range records {
			if r.URL == "" {
				continue
			}
			if prev, ok := latest[r.URL]; !ok || r.SentAt.After(prev) {
				latest[r.URL] = r.SentAt
			}
		}
		for url, sentAt := range latest {
			if err := bucket.Put([]byte(url), []byte(formatSendTime(sentAt))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write bbolt records: %v", domain.ErrStorage, err)
	}
	return nil
}
