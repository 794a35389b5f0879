package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) IncrementCounter(ctx context.Context, name string) (int64, error) {
	const stmt = `
INSERT INTO counters (name, count, updated_at)
VALUES (?, 1, ?)
ON CONFLICT(name) DO UPDATE SET
	count = count + 1,
	updated_at = excluded.updated_at
RETURNING count;
`
	var count int64
	if err := s.db.QueryRowContext(ctx, stmt, name, time.Now().UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: increment counter: %w", err)
	}
	return count, nil
}

func (s *Store) GetCounter(ctx context.Context, name string) (int64, bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT count FROM counters WHERE name = ? LIMIT 1;`, name).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: get counter: %w", err)
	}
	return count, true, nil
}

func (s *Store) SetCounter(ctx context.Context, name string, value int64) error {
	const stmt = `
INSERT INTO counters (name, count, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	count = excluded.count,
	updated_at = excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, name, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: set counter: %w", err)
	}
	return nil
}

func (s *Store) ListCounters(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, count FROM counters;`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan counter: %w", err)
		}
		out[name] = count
	}
	return out, rows.Err()
}

// ImportCounters seeds the table from a legacy snapshot. It is a no-op once any
// counter exists.
func (s *Store) ImportCounters(ctx context.Context, values map[string]int64) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	var existing int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM counters;`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("sqlite: count counters: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin import: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	imported := 0
	for name, value := range values {
		if name == "" || value < 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO counters (name, count, updated_at) VALUES (?, ?, ?);`, name, value, now); err != nil {
			return 0, fmt.Errorf("sqlite: import counter %s: %w", name, err)
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit import: %w", err)
	}
	return imported, nil
}
