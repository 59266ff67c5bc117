package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazz-dev/readycheck/internal/readiness"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checks (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    backend_url       TEXT    NOT NULL,
    state             TEXT    NOT NULL CHECK(state IN ('connected', 'failed')),
    http_status       INTEGER,
    service           TEXT    NOT NULL DEFAULT '',
    backend_timestamp TEXT    NOT NULL DEFAULT '',
    error             TEXT    NOT NULL DEFAULT '',
    response_ms       INTEGER NOT NULL,
    checked_at        TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_checks_backend_checked ON checks(backend_url, checked_at DESC);
`

// checkedAtLayout is fixed width so that checked_at sorts chronologically
// as text.
const checkedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Check is a stored check outcome. HTTPStatus is nil when no HTTP response
// was received.
type Check struct {
	ID               int64     `json:"id"`
	BackendURL       string    `json:"backend_url"`
	State            string    `json:"state"`
	HTTPStatus       *int      `json:"http_status"`
	Service          string    `json:"service,omitempty"`
	BackendTimestamp string    `json:"backend_timestamp,omitempty"`
	Error            string    `json:"error,omitempty"`
	ResponseMs       int64     `json:"response_ms"`
	CheckedAt        time.Time `json:"checked_at"`
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// ":memory:" gives every connection its own database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertCheck persists a settled check. Checks still in the checking state
// are rejected.
func (d *DB) InsertCheck(ctx context.Context, r readiness.Result) error {
	state := r.View.State()
	if state == readiness.StateChecking {
		return fmt.Errorf("inserting check for %q: check has not settled", r.BackendURL)
	}

	var status sql.NullInt64
	if r.HTTPStatus != 0 {
		status = sql.NullInt64{Int64: int64(r.HTTPStatus), Valid: true}
	}
	health, _ := r.View.Health()
	errMsg, _ := r.View.ErrorMessage()

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO checks (backend_url, state, http_status, service, backend_timestamp, error, response_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BackendURL,
		state.String(),
		status,
		health.Service,
		health.Timestamp,
		errMsg,
		r.Duration.Milliseconds(),
		r.CheckedAt.UTC().Format(checkedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting check for %q: %w", r.BackendURL, err)
	}
	return nil
}

const checkColumns = `id, backend_url, state, http_status, service, backend_timestamp, error, response_ms, checked_at`

// LatestCheck returns the most recent check, or nil if none.
func (d *DB) LatestCheck(ctx context.Context) (*Check, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM checks ORDER BY checked_at DESC, id DESC LIMIT 1`,
	)
	c, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest check: %w", err)
	}
	return c, nil
}

// History returns paginated check history, newest first, plus the total count.
func (d *DB) History(ctx context.Context, limit, offset int) ([]Check, int, error) {
	var total int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checks`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting checks: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+checkColumns+` FROM checks ORDER BY checked_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	checks, err := scanChecks(rows)
	if err != nil {
		return nil, 0, err
	}
	return checks, total, nil
}

// ConnectedPercent returns the percentage of connected checks among the last N.
func (d *DB) ConnectedPercent(ctx context.Context, last int) (float64, error) {
	var total int
	var upCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN state = 'connected' THEN 1 ELSE 0 END)
		FROM (
			SELECT state FROM checks ORDER BY checked_at DESC, id DESC LIMIT ?
		)
	`, last).Scan(&total, &upCount)
	if err != nil {
		return 0, fmt.Errorf("calculating connected percent: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(upCount.Int64) / float64(total) * 100, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*Check, error) {
	var c Check
	var status sql.NullInt64
	var checkedAt string
	err := row.Scan(&c.ID, &c.BackendURL, &c.State, &status, &c.Service, &c.BackendTimestamp, &c.Error, &c.ResponseMs, &checkedAt)
	if err != nil {
		return nil, err
	}
	if status.Valid {
		s := int(status.Int64)
		c.HTTPStatus = &s
	}
	t, err := time.Parse(checkedAtLayout, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing checked_at %q: %w", checkedAt, err)
	}
	c.CheckedAt = t
	return &c, nil
}

func scanChecks(rows *sql.Rows) ([]Check, error) {
	var checks []Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning check row: %w", err)
		}
		checks = append(checks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check rows: %w", err)
	}
	return checks, nil
}
