package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	reference  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	confidence REAL NOT NULL DEFAULT 0,
	record     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rate_budgets (
	provider     TEXT PRIMARY KEY,
	month_key    TEXT NOT NULL,
	calls        INTEGER NOT NULL DEFAULT 0,
	last_call_at DATETIME,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS content_cache (
	cache_key  TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_content_cache_expires_at ON content_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, ref model.EntityReference) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	refJSON, err := json.Marshal(ref)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal reference")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, reference, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(refJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Reference: ref,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, rec *model.ConsolidatedRecord) error {
	if rec == nil {
		return eris.Errorf("sqlite: complete run %s: nil record", runID)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET record = ?, status = ?, confidence = ?, updated_at = ? WHERE id = ?`,
		string(recJSON), string(model.StatusFor(rec.Outcome)), rec.ConfidenceScore, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, reference, status, confidence, record, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LoadBudgets(ctx context.Context) ([]model.BudgetState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, month_key, calls, last_call_at FROM rate_budgets ORDER BY provider`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load budgets")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.BudgetState
	for rows.Next() {
		var b model.BudgetState
		var last sql.NullTime
		if err := rows.Scan(&b.Provider, &b.MonthKey, &b.Calls, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan budget")
		}
		if last.Valid {
			b.LastCallAt = last.Time
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load budgets iterate")
}

func (s *SQLiteStore) SaveBudget(ctx context.Context, b model.BudgetState) error {
	var last any
	if !b.LastCallAt.IsZero() {
		last = b.LastCallAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_budgets (provider, month_key, calls, last_call_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(provider) DO UPDATE SET
		   month_key = excluded.month_key,
		   calls = excluded.calls,
		   last_call_at = excluded.last_call_at,
		   updated_at = excluded.updated_at`,
		b.Provider, b.MonthKey, b.Calls, last, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save budget %s", b.Provider)
}

func (s *SQLiteStore) GetCachedContent(ctx context.Context, key string) (*model.RawContent, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM content_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached content")
	}

	var rc model.RawContent
	if err := json.Unmarshal([]byte(content), &rc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached content")
	}
	return &rc, nil
}

func (s *SQLiteStore) SetCachedContent(ctx context.Context, key string, rc model.RawContent, ttl time.Duration) error {
	now := time.Now().UTC()
	data, err := json.Marshal(rc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal content")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_cache (cache_key, content, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   content = excluded.content,
		   cached_at = excluded.cached_at,
		   expires_at = excluded.expires_at`,
		key, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached content")
}

func (s *SQLiteStore) DeleteExpiredContent(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM content_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired content")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status, refJSON string
	var recJSON sql.NullString

	err := row.Scan(&r.ID, &refJSON, &status, &r.Confidence, &recJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, []byte(refJSON), nullBytes(recJSON)); err != nil {
		return nil, eris.Wrap(err, "sqlite")
	}
	return &r, nil
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}

// decodeRun fills the JSON columns of r. rec may be nil.
func decodeRun(r *model.Run, ref, rec []byte) error {
	if err := json.Unmarshal(ref, &r.Reference); err != nil {
		return eris.Wrap(err, "unmarshal reference")
	}
	if len(rec) == 0 {
		return nil
	}
	r.Record = &model.ConsolidatedRecord{}
	if err := json.Unmarshal(rec, r.Record); err != nil {
		return eris.Wrap(err, "unmarshal record")
	}
	return nil
}
