// Package postgresstore shares raw session payloads between API instances
// through PostgreSQL.
package postgresstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

//go:embed schema.sql
var schema string

var (
	_ session.Store         = (*Store)(nil)
	_ session.StatsReporter = (*Store)(nil)
)

// Store is a session.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the cache table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating session cache schema: %w", err)
	}
	return nil
}

// Get returns the payload stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT payload
		FROM session_cache
		WHERE cache_key = $1
	`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrCacheMiss
		}
		return nil, err
	}
	return payload, nil
}

// Put upserts the payload for key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO session_cache (cache_key, payload, payload_size, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			payload_size = EXCLUDED.payload_size,
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, key, value, len(value))
	return err
}

// DeletePrefix removes every entry whose key starts with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	query := `DELETE FROM session_cache WHERE cache_key LIKE $1 ESCAPE '\'`

	tag, err := s.pool.Exec(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Stats reports the number of stored payloads and their total size.
func (s *Store) Stats(ctx context.Context) (session.StoreStats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(payload_size), 0) FROM session_cache`

	stats := session.StoreStats{Backend: "postgres"}
	if err := s.pool.QueryRow(ctx, query).Scan(&stats.Entries, &stats.Bytes); err != nil {
		return stats, err
	}
	return stats, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
