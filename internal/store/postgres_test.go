package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runRowColumns = []string{"id", "reference", "status", "confidence", "record", "created_at", "updated_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.EntityReference{Domain: "acme.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET record`).
		WithArgs(pgxmock.AnyArg(), "done", 0.72, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteRun(context.Background(), "run-1", sampleRecord()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET record`).
		WithArgs(pgxmock.AnyArg(), "done", 0.72, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", sampleRecord())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	refJSON, err := json.Marshal(model.EntityReference{Domain: "acme.com"})
	require.NoError(t, err)
	recJSON, err := json.Marshal(sampleRecord())
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, reference, status, confidence, record, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runRowColumns).
			AddRow("run-1", refJSON, "done", 0.72, recJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", run.Reference.Domain)
	assert.Equal(t, model.RunStatusDone, run.Status)
	require.NotNil(t, run.Record)
	assert.Equal(t, "Acme Corp", run.Record.TextOf(model.FieldName))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	refJSON, err := json.Marshal(model.EntityReference{Name: "Acme"})
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("degraded", 5, 10).
		WillReturnRows(pgxmock.NewRows(runRowColumns).
			AddRow("run-2", refJSON, "degraded", 0.0, []byte(nil), now, now))

	runs, err := s.ListRuns(context.Background(), model.RunFilter{Status: model.RunStatusDegraded, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Acme", runs[0].Reference.Name)
	assert.Nil(t, runs[0].Record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runRowColumns))

	runs, err := s.ListRuns(context.Background(), model.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Budgets(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	last := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO rate_budgets`).
		WithArgs("jina", "2026-05", 4, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT provider, month_key, calls, last_call_at FROM rate_budgets`).
		WillReturnRows(pgxmock.NewRows([]string{"provider", "month_key", "calls", "last_call_at"}).
			AddRow("firecrawl", "2026-05", 1, (*time.Time)(nil)).
			AddRow("jina", "2026-05", 4, &last))

	ctx := context.Background()
	require.NoError(t, s.SaveBudget(ctx, model.BudgetState{Provider: "jina", MonthKey: "2026-05", Calls: 4, LastCallAt: last}))

	got, err := s.LoadBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].LastCallAt.IsZero())
	assert.Equal(t, 4, got[1].Calls)
	assert.True(t, last.Equal(got[1].LastCallAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedContent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT content FROM content_cache`).
		WithArgs("https://unknown.com").
		WillReturnError(pgx.ErrNoRows)

	result, err := s.GetCachedContent(context.Background(), "https://unknown.com")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedContent_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(model.RawContent{Target: "https://acme.com", Provider: "jina", Body: "# Acme"})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT content FROM content_cache`).
		WithArgs("https://acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"content"}).AddRow(data))

	result, err := s.GetCachedContent(context.Background(), "https://acme.com")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "jina", result.Provider)
	assert.Equal(t, "# Acme", result.Body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedContent_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(cache_key\)`).
		WithArgs("https://acme.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedContent(context.Background(), "https://acme.com", model.RawContent{Body: "x"}, 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredContent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM content_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	t.Parallel()
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
