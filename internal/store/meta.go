package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

const (
	metaWatermark    = "watermark"
	metaCacheVersion = "cache_version"
)

func (s *Store) metaGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_meta WHERE key = ?
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) metaSet(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// Watermark returns the last confirmed server insertion time, or the
// zero time when no incremental pull has completed yet. This is the
// remote store's clock, not the client event timestamp; the two are
// never interchangeable.
func (s *Store) Watermark(ctx context.Context) (time.Time, error) {
	value, ok, err := s.metaGet(ctx, metaWatermark)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark: %w", err)
	}
	return t, nil
}

// SetWatermark advances the last confirmed server insertion time.
func (s *Store) SetWatermark(ctx context.Context, t time.Time) error {
	return s.metaSet(ctx, metaWatermark, t.UTC().Format(time.RFC3339Nano))
}

// CacheVersion returns the schema version the local cache was written
// with, zero when unset. Smart sync compares it against the current
// schema version to decide between an incremental pull and a full
// resync.
func (s *Store) CacheVersion(ctx context.Context) (int, error) {
	value, ok, err := s.metaGet(ctx, metaCacheVersion)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse cache version: %w", err)
	}
	return v, nil
}

// SetCacheVersion records the schema version after a full resync.
func (s *Store) SetCacheVersion(ctx context.Context, v int) error {
	return s.metaSet(ctx, metaCacheVersion, strconv.Itoa(v))
}
