package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ReloadWindow is how long a recorded module reload keeps suppressing the
// next one. Reload loops across successive runs are as useless as within
// one run.
const ReloadWindow = 10 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	overall TEXT NOT NULL,
	results INTEGER NOT NULL,
	ts      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS actions(
	run_id INTEGER NOT NULL,
	kind   TEXT NOT NULL,
	target TEXT NOT NULL,
	tier   TEXT NOT NULL,
	ok     INTEGER NOT NULL,
	error  TEXT,
	ts     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_kind_target ON actions(kind, target);
`

// RunRecord is one persisted diagnostic run.
type RunRecord struct {
	ID      int64
	Overall string
	Results int
	At      time.Time
}

// Journal persists diagnostic runs and executed actions in a local sqlite
// file. It exists for two consumers: the planner's reload suppression
// window and operators asking "what did the last run decide".
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRun persists one completed run and returns its id.
func (j *Journal) RecordRun(ctx context.Context, overall string, results int) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(overall, results, ts) VALUES(?,?,?)`,
		overall, results, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("history: record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: record run: %w", err)
	}
	return id, nil
}

// RecordAction persists one executed action under a run.
func (j *Journal) RecordAction(ctx context.Context, runID int64, kind, target, tier string, execErr error) error {
	ok := 1
	errText := ""
	if execErr != nil {
		ok = 0
		errText = execErr.Error()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO actions(run_id, kind, target, tier, ok, error, ts) VALUES(?,?,?,?,?,?,?)`,
		runID, kind, target, tier, ok, errText, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("history: record action: %w", err)
	}
	return nil
}

// LastRun returns the most recent persisted run, or false when the journal
// is empty.
func (j *Journal) LastRun(ctx context.Context) (RunRecord, bool, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, overall, results, ts FROM runs ORDER BY id DESC LIMIT 1`)

	var rec RunRecord
	var ts int64
	if err := row.Scan(&rec.ID, &rec.Overall, &rec.Results, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, fmt.Errorf("history: last run: %w", err)
	}
	rec.At = time.Unix(ts, 0)
	return rec, true, nil
}

// AttemptedSince reports whether an action with the given kind and target
// was executed within the window.
func (j *Journal) AttemptedSince(ctx context.Context, kind, target string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window).Unix()
	row := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM actions WHERE kind=? AND target=? AND ts>=?`,
		kind, target, cutoff)

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("history: attempted since: %w", err)
	}
	return count > 0, nil
}
