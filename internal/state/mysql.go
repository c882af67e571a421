package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Schema creates the run table.  Migrate runs it on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS harvest_run (
    id          CHAR(36)     NOT NULL PRIMARY KEY,
    started_at  DATETIME(6)  NOT NULL,
    finished_at DATETIME(6)  NOT NULL,
    since       DATETIME(6)  NOT NULL,
    status      VARCHAR(16)  NOT NULL,
    total       INT          NOT NULL DEFAULT 0,
    valid       INT          NOT NULL DEFAULT 0,
    invalid     INT          NOT NULL DEFAULT 0,
    error       TEXT         NOT NULL,
    KEY idx_status_started (status, started_at)
)`

// MySQLStore keeps runs in the `harvest_run` table.
type MySQLStore struct {
	db *sqlx.DB
}

// NewMySQLStore wraps an open pool.
func NewMySQLStore(db *sqlx.DB) *MySQLStore { return &MySQLStore{db: db} }

// Migrate creates the table when missing.
func (s *MySQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate harvest_run: %w", err)
	}
	return nil
}

// LastSuccess implements Store.
func (s *MySQLStore) LastSuccess(ctx context.Context) (time.Time, error) {
	const q = `
        SELECT started_at
        FROM   harvest_run
        WHERE  status = ?
        ORDER  BY started_at DESC
        LIMIT  1`
	var t time.Time
	if err := s.db.GetContext(ctx, &t, q, StatusSuccess); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNoRuns
		}
		return time.Time{}, fmt.Errorf("last successful run: %w", err)
	}
	return t.UTC(), nil
}

// Record implements Store.
func (s *MySQLStore) Record(ctx context.Context, r Run) error {
	const q = `
        INSERT INTO harvest_run
               (id, started_at, finished_at, since, status, total, valid, invalid, error)
        VALUES (:id, :started_at, :finished_at, :since, :status, :total, :valid, :invalid, :error)`
	if _, err := s.db.NamedExecContext(ctx, q, normalize(r)); err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent implements Store.
func (s *MySQLStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	const q = `
        SELECT id, started_at, finished_at, since, status,
               total, valid, invalid, error
        FROM   harvest_run
        ORDER  BY started_at DESC
        LIMIT  ?`
	runs := make([]Run, 0, limit)
	if err := s.db.SelectContext(ctx, &runs, q, limit); err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}
