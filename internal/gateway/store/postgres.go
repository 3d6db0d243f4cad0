package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Postgres persists allowlist entries in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the allowlist table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gateway_allowlist (
			host     TEXT PRIMARY KEY,
			added_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure allowlist schema: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host FROM gateway_allowlist ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("list allowlist: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("scan allowlist host: %w", err)
		}
		hosts = append(hosts, host)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allowlist: %w", err)
	}
	return hosts, nil
}

// Replace swaps the entire persisted allowlist in one transaction.
func (s *Postgres) Replace(ctx context.Context, hosts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allowlist replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gateway_allowlist`); err != nil {
		return fmt.Errorf("clear allowlist: %w", err)
	}
	now := time.Now()
	for _, host := range hosts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gateway_allowlist (host, added_at) VALUES ($1, $2) ON CONFLICT (host) DO NOTHING`,
			host, now,
		); err != nil {
			return fmt.Errorf("insert allowlist host %s: %w", host, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allowlist replace: %w", err)
	}
	return nil
}
