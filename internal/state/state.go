// internal/state/state.go
//
// Harvest run history.
//
// Context
// -------
// Each harvest run leaves one row behind.  The scheduler asks for the start
// time of the last successful run and only searches for records changed
// since then; without history it falls back to the configured lookback.
// The ops server lists recent runs.
//
// Two implementations satisfy Store:
//
//   - MySQLStore: the `harvest_run` table via sqlx.
//   - MemoryStore: process-local, used when no DSN is configured and by
//     tests.
//
// Notes
// -----
//   - Times are stored and returned in UTC.
//   - Oxford commas, two spaces after periods.
package state

import (
	"context"
	"errors"
	"time"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ErrNoRuns is returned by LastSuccess when no run has succeeded yet.
var ErrNoRuns = errors.New("no successful harvest runs")

// Run is one harvest run.
type Run struct {
	ID         string    `db:"id"          json:"id"`
	StartedAt  time.Time `db:"started_at"  json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Since      time.Time `db:"since"       json:"since"`
	Status     string    `db:"status"      json:"status"`
	Total      int       `db:"total"       json:"total"`
	Valid      int       `db:"valid"       json:"valid"`
	Invalid    int       `db:"invalid"     json:"invalid"`
	Error      string    `db:"error"       json:"error,omitempty"`
}

// Store persists runs.
type Store interface {
	// LastSuccess returns StartedAt of the newest successful run.
	LastSuccess(ctx context.Context) (time.Time, error)
	Record(ctx context.Context, r Run) error
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)
}

func normalize(r Run) Run {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	r.Since = r.Since.UTC()
	return r
}
