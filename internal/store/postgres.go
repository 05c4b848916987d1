package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertRun   = `INSERT INTO runs (id, reference, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	pgCompleteRun = `UPDATE runs SET record = $1, status = $2, confidence = $3, updated_at = $4 WHERE id = $5`
	pgGetRun      = `SELECT id, reference, status, confidence, record, created_at, updated_at FROM runs WHERE id = $1`
	pgLoadBudgets = `SELECT provider, month_key, calls, last_call_at FROM rate_budgets ORDER BY provider`

	pgSaveBudget = `INSERT INTO rate_budgets (provider, month_key, calls, last_call_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (provider) DO UPDATE SET
		  month_key = EXCLUDED.month_key,
		  calls = EXCLUDED.calls,
		  last_call_at = EXCLUDED.last_call_at,
		  updated_at = now()`

	pgGetContent = `SELECT content FROM content_cache WHERE cache_key = $1 AND expires_at > now()`

	pgSetContent = `INSERT INTO content_cache (cache_key, content, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
		  content = EXCLUDED.content,
		  cached_at = EXCLUDED.cached_at,
		  expires_at = EXCLUDED.expires_at`

	pgDeleteExpired = `DELETE FROM content_cache WHERE expires_at <= now()`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_run":     pgInsertRun,
	"complete_run":   pgCompleteRun,
	"get_run":        pgGetRun,
	"save_budget":    pgSaveBudget,
	"get_content":    pgGetContent,
	"set_content":    pgSetContent,
	"delete_expired": pgDeleteExpired,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	reference  JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	record     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rate_budgets (
	provider     TEXT PRIMARY KEY,
	month_key    TEXT NOT NULL,
	calls        INTEGER NOT NULL DEFAULT 0,
	last_call_at TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS content_cache (
	cache_key  TEXT PRIMARY KEY,
	content    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_content_cache_expires_at ON content_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, ref model.EntityReference) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	refJSON, err := json.Marshal(ref)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal reference")
	}

	if _, err := s.pool.Exec(ctx, pgInsertRun, id, refJSON, string(model.RunStatusRunning), now, now); err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Reference: ref,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, rec *model.ConsolidatedRecord) error {
	if rec == nil {
		return eris.Errorf("postgres: complete run %s: nil record", runID)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	tag, err := s.pool.Exec(ctx, pgCompleteRun,
		recJSON, string(model.StatusFor(rec.Outcome)), rec.ConfidenceScore, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, pgGetRun, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, reference, status, confidence, record, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", argN)
	args = append(args, limit)
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs scan")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var refJSON, recJSON []byte
	if err := row.Scan(&r.ID, &refJSON, &status, &r.Confidence, &recJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, refJSON, recJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) LoadBudgets(ctx context.Context) ([]model.BudgetState, error) {
	rows, err := s.pool.Query(ctx, pgLoadBudgets)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load budgets")
	}
	defer rows.Close()

	var out []model.BudgetState
	for rows.Next() {
		var b model.BudgetState
		var last *time.Time
		if err := rows.Scan(&b.Provider, &b.MonthKey, &b.Calls, &last); err != nil {
			return nil, eris.Wrap(err, "postgres: scan budget")
		}
		if last != nil {
			b.LastCallAt = *last
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load budgets iterate")
}

func (s *PostgresStore) SaveBudget(ctx context.Context, b model.BudgetState) error {
	var last *time.Time
	if !b.LastCallAt.IsZero() {
		t := b.LastCallAt.UTC()
		last = &t
	}
	_, err := s.pool.Exec(ctx, pgSaveBudget, b.Provider, b.MonthKey, b.Calls, last)
	return eris.Wrapf(err, "postgres: save budget %s", b.Provider)
}

func (s *PostgresStore) GetCachedContent(ctx context.Context, key string) (*model.RawContent, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, pgGetContent, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached content")
	}

	var rc model.RawContent
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached content")
	}
	return &rc, nil
}

func (s *PostgresStore) SetCachedContent(ctx context.Context, key string, rc model.RawContent, ttl time.Duration) error {
	data, err := json.Marshal(rc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal content")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, pgSetContent, key, data, now, now.Add(ttl))
	return eris.Wrap(err, "postgres: set cached content")
}

func (s *PostgresStore) DeleteExpiredContent(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, pgDeleteExpired)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired content")
	}
	return int(tag.RowsAffected()), nil
}
