package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/mcqa-data/mcqa/features"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// ErrCacheMiss is returned by Get when no feature set is stored for a key.
var ErrCacheMiss = errors.New("features not cached")

// Key identifies one converted split. Settings fingerprints every other
// option that changes the produced features (see Fingerprint).
type Key struct {
	Split     string
	MaxLength int
	Tokenizer string
	Settings  string
}

// String renders cached_<split>_<maxLength>_<tokenizer>, followed by
// _<settings> when a fingerprint is set.
func (k Key) String() string {
	s := fmt.Sprintf("cached_%s_%d_%s", k.Split, k.MaxLength, k.Tokenizer)
	if k.Settings != "" {
		s += "_" + k.Settings
	}
	return s
}

// Fingerprint hashes parts into a short hex string for Key.Settings.
func Fingerprint(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		d.WriteString(p)
		d.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Entry describes a stored feature set.
type Entry struct {
	ID        uuid.UUID
	Key       string
	Split     string
	MaxLength int
	Count     int
	CreatedAt time.Time
}

// Store persists converted features in a libsql database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects to dsn, which is either a libsql URL or a local file path.
func Open(dsn string, logger zerolog.Logger) (*Store, error) {
	db, err := ConnectToDB(dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, logger: logger.With().Str("component", "cache").Logger()}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// ConnectToDB opens a libsql connection, creating the parent directory of a
// local database file when needed.
func ConnectToDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("cache dsn cannot be empty")
	}
	url := dsn
	if !strings.Contains(dsn, "://") && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("could not create cache directory: %w", err)
		}
		url = "file:" + dsn
	}
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	return db, nil
}

func (s *Store) init() error {
	createTables := []string{
		`CREATE TABLE IF NOT EXISTS feature_sets (
			id TEXT PRIMARY KEY UNIQUE,
			cache_key TEXT NOT NULL UNIQUE,
			split TEXT NOT NULL,
			max_length INTEGER NOT NULL,
			count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS features (
			set_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (set_id, idx)
		)`,
	}
	for _, query := range createTables {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create cache tables: %w", err)
		}
	}
	return nil
}

// Put replaces the feature set stored under key.
func (s *Store) Put(ctx context.Context, key Key, feats []features.Feature) (uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteKey(ctx, tx, key.String()); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feature_sets (id, cache_key, split, max_length, count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), key.String(), key.Split, key.MaxLength, len(feats), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert feature set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features (set_id, idx, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer stmt.Close()
	for i, f := range feats {
		payload, err := json.Marshal(f)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to marshal feature %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, id.String(), i, payload); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit feature set: %w", err)
	}
	s.logger.Info().Str("key", key.String()).Int("count", len(feats)).Msg("saved features to cache")
	return id, nil
}

// Get loads the feature set stored under key, in its original order.
func (s *Store) Get(ctx context.Context, key Key) ([]features.Feature, error) {
	entry, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM features WHERE set_id = ? ORDER BY idx`, entry.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	feats := make([]features.Feature, 0, entry.Count)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		var f features.Feature
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, fmt.Errorf("failed to decode cached feature: %w", err)
		}
		feats = append(feats, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(feats) != entry.Count {
		return nil, fmt.Errorf("cache entry %s is incomplete: %d of %d features", key, len(feats), entry.Count)
	}
	s.logger.Info().Str("key", key.String()).Int("count", len(feats)).Msg("loaded features from cache")
	return feats, nil
}

// Lookup returns the metadata of the feature set stored under key.
func (s *Store) Lookup(ctx context.Context, key Key) (*Entry, error) {
	var (
		e         Entry
		rawID     string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, cache_key, split, max_length, count, created_at FROM feature_sets WHERE cache_key = ?`,
		key.String()).Scan(&rawID, &e.Key, &e.Split, &e.MaxLength, &e.Count, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", key, err)
	}
	if e.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("invalid feature set id %q: %w", rawID, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid feature set timestamp %q: %w", createdAt, err)
	}
	return &e, nil
}

// Delete removes the feature set stored under key, if any.
func (s *Store) Delete(ctx context.Context, key Key) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteKey(ctx, tx, key.String()); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteKey(ctx context.Context, tx *sql.Tx, cacheKey string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM features WHERE set_id IN (SELECT id FROM feature_sets WHERE cache_key = ?)`, cacheKey); err != nil {
		return fmt.Errorf("failed to delete cached features: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM feature_sets WHERE cache_key = ?`, cacheKey); err != nil {
		return fmt.Errorf("failed to delete feature set: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
