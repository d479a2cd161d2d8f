package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statewire/pushgate/internal/config"
	"github.com/statewire/pushgate/internal/connection"
)

var _ connection.Store = (*PostgresStore)(nil)

// PostgresStore keeps connection records in a Postgres table named after
// the configured namespace (id, data, created_at, expires_at).
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a store on an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool, namespace string) *PostgresStore {
	return &PostgresStore{
		pool:  pool,
		table: namespace,
	}
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// EnsureSchema creates the record table if it does not exist. The table
// name comes from config and is restricted to identifier characters at
// validation time.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			data       JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)`, s.table)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Get returns the record for id, or (nil, nil) when absent.
func (s *PostgresStore) Get(ctx context.Context, id string) (*connection.Connection, error) {
	query := fmt.Sprintf(
		"SELECT data, created_at, expires_at FROM %s WHERE id = $1", s.table)

	var (
		data      []byte
		createdAt time.Time
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(&data, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read connection %s: %w", id, err)
	}

	rec := &connection.Connection{
		ID:        id,
		CreatedAt: createdAt,
	}
	if expiresAt != nil {
		rec.ExpiresAt = *expiresAt
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode connection %s: %w", id, err)
		}
	}
	return rec, nil
}

// Put upserts the whole record, overwriting every column on conflict.
func (s *PostgresStore) Put(ctx context.Context, conn *connection.Connection) error {
	data, err := json.Marshal(conn.Data)
	if err != nil {
		return fmt.Errorf("encode connection %s: %w", conn.ID, err)
	}

	var expiresAt interface{}
	if !conn.ExpiresAt.IsZero() {
		expiresAt = conn.ExpiresAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			data       = EXCLUDED.data,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, conn.ID, data, conn.CreatedAt, expiresAt); err != nil {
		return fmt.Errorf("write connection %s: %w", conn.ID, err)
	}
	return nil
}

// UpdateData rewrites only the data column. Updating an absent record
// affects zero rows and is not an error.
func (s *PostgresStore) UpdateData(ctx context.Context, id string, data connection.Data) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data for %s: %w", id, err)
	}

	query := fmt.Sprintf("UPDATE %s SET data = $2 WHERE id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, id, encoded); err != nil {
		return fmt.Errorf("update connection %s: %w", id, err)
	}
	return nil
}

// Delete removes the record for id. Deleting an absent record is not an
// error.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	return nil
}
