// Package store implements the durable local cache backing the sync layer.
// This file is the key-value surface: JSON snapshots under well-known keys,
// paired with fetch timestamps so the cache manager can age them.
//
// The original runtime was single-threaded and read-modify-write sequences on
// the cache were safe by construction. This process is not single-threaded,
// so Mutate serializes those sequences behind one mutex (concurrent HTTP
// handlers would otherwise interleave read and write of the same snapshot).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Well-known store keys. Each cache key stores a JSON-serialized sequence;
// each *_ts key stores an RFC3339 instant string.
const (
	KeyUsers       = "users"
	KeyAPIURL      = "api_url"
	KeyMasterCache = "master_cache"
	KeyMasterTS    = "master_cache_ts"
	KeyQCCache     = "qc_cache"
	KeyQCTS        = "qc_cache_ts"
	KeyEditHistory = "edit_history"
)

// KVEntry is one persisted key-value row.
type KVEntry struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey;column:key"`
	Value     string    `gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (KVEntry) TableName() string { return "kv_entries" }

// Store wraps the database with typed accessors. Safe for concurrent use.
type Store struct {
	db *gorm.DB
	mu sync.Mutex // guards read-modify-write sequences (see Mutate)
}

// New wraps an opened database handle.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for the idempotency helpers.
func (s *Store) DB() *gorm.DB { return s.db }

// GetRaw reads the raw JSON string under key. The boolean is false when the
// key has never been written.
func (s *Store) GetRaw(ctx context.Context, key string) (string, bool, error) {
	var e KVEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

// PutRaw upserts the raw JSON string under key.
func (s *Store) PutRaw(ctx context.Context, key, value string) error {
	e := KVEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&KVEntry{}).Error
}

// GetJSON decodes the value under key into out. The boolean is false when
// the key is absent.
func (s *Store) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}

// PutJSON encodes v and upserts it under key.
func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.PutRaw(ctx, key, string(b))
}

// ReadSnapshot loads a cached sequence and its fetch timestamp. The boolean
// is false when no snapshot exists; a snapshot without a readable timestamp
// is treated as infinitely stale (zero time) rather than missing.
func (s *Store) ReadSnapshot(ctx context.Context, key, tsKey string, out any) (time.Time, bool, error) {
	ok, err := s.GetJSON(ctx, key, out)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	raw, ok, err := s.GetRaw(ctx, tsKey)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, true, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, true, nil
	}
	return at, true, nil
}

// WriteSnapshot stores a sequence and stamps its fetch time.
func (s *Store) WriteSnapshot(ctx context.Context, key, tsKey string, v any, at time.Time) error {
	if err := s.PutJSON(ctx, key, v); err != nil {
		return err
	}
	return s.PutRaw(ctx, tsKey, at.UTC().Format(time.RFC3339Nano))
}

// ClearSnapshot drops a sequence and its timestamp.
func (s *Store) ClearSnapshot(ctx context.Context, key, tsKey string) error {
	return s.Delete(ctx, key, tsKey)
}

// Mutate runs a read-modify-write sequence on one key under the store lock.
// fn receives the current raw value (ok=false when absent) and returns the
// replacement; returning keep=false deletes the key instead.
func (s *Store) Mutate(ctx context.Context, key string, fn func(raw string, ok bool) (out string, keep bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	out, keep, err := fn(raw, ok)
	if err != nil {
		return err
	}
	if !keep {
		return s.Delete(ctx, key)
	}
	return s.PutRaw(ctx, key, out)
}

// SnapshotStats reports aggregate metadata about one cached sequence: how
// many records it holds and when it was fetched. Used by the diagnostics
// endpoint; a missing snapshot yields a zero count and nil timestamp.
func (s *Store) SnapshotStats(ctx context.Context, key, tsKey string) (count int, fetchedAt *time.Time, err error) {
	var items []json.RawMessage
	at, ok, err := s.ReadSnapshot(ctx, key, tsKey, &items)
	if err != nil || !ok {
		return 0, nil, err
	}
	if at.IsZero() {
		return len(items), nil, nil
	}
	return len(items), &at, nil
}
