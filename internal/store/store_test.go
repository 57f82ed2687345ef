package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"shipment-consolidator/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestListStockLots(t *testing.T) {
	s, mock := newMockStore(t)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"product_code", "expiry_date", "quantity", "location", "note"}).
		AddRow("HC0001", expiry, 10, "A-1", "front").
		AddRow("HC0002", nil, 5, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM stock_lots WHERE quantity > 0")).WillReturnRows(rows)

	lots, err := s.ListStockLots(context.Background())

	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, models.StockLot{Code: "HC0001", Expiry: expiry, Remaining: 10, Location: "A-1", Note: "front"}, lots[0])
	assert.True(t, lots[1].Expiry.IsZero(), "NULL expiry means non-expiring")
	assert.Equal(t, 5, lots[1].Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStockLotsError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM stock_lots").WillReturnError(assert.AnError)

	_, err := s.ListStockLots(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
}

func TestListProductCodes(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_code FROM products WHERE active")).
		WillReturnRows(sqlmock.NewRows([]string{"product_code"}).AddRow("HC0001").AddRow("HC0002"))

	codes, err := s.ListProductCodes(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"HC0001", "HC0002"}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	s, mock := newMockStore(t)
	started := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	summary := models.NewRunSummary("run-1", started)
	summary.Outcome = models.RunOutcomePartialSuccess
	summary.Instructions = 2
	summary.FinishedAt = started.Add(time.Minute)
	summary.AddError(models.StageFetch, "amazon", assert.AnError)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consolidation_runs")).
		WithArgs("run-1", models.RunOutcomePartialSuccess, false, 2, 1, started, summary.FinishedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveRun(context.Background(), summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	s, mock := newMockStore(t)
	summary := models.NewRunSummary("run-1", time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	summary.Outcome = models.RunOutcomeSuccess
	summary.Source("rakuten").Written = 3
	payload, err := json.Marshal(summary)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT summary FROM consolidation_runs WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"summary"}).AddRow(payload))

	got, err := s.GetRun(context.Background(), "run-1")

	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.Sources["rakuten"].Written)
}

func TestGetRunNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT summary FROM consolidation_runs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"summary"}))

	_, err := s.GetRun(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	s, mock := newMockStore(t)
	a, _ := json.Marshal(models.NewRunSummary("run-2", time.Now()))
	b, _ := json.Marshal(models.NewRunSummary("run-1", time.Now()))
	mock.ExpectQuery("ORDER BY started_at DESC LIMIT").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"summary"}).AddRow(a).AddRow(b))

	runs, err := s.ListRuns(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
}
