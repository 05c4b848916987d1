// Package store persists enrichment runs, provider rate budgets and
// acquired content in SQLite or Postgres.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, ref model.EntityReference) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, rec *model.ConsolidatedRecord) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Rate budgets
	LoadBudgets(ctx context.Context) ([]model.BudgetState, error)
	SaveBudget(ctx context.Context, state model.BudgetState) error

	// Content cache
	GetCachedContent(ctx context.Context, key string) (*model.RawContent, error)
	SetCachedContent(ctx context.Context, key string, content model.RawContent, ttl time.Duration) error
	DeleteExpiredContent(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured backend and migrates it.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 100
