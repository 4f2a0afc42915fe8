package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsight/sourcing-cli/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tracked_stores").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	err := s.Migrate(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TrackStore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO tracked_stores").
		WithArgs(pgxmock.AnyArg(), "shop.example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	saved, err := s.TrackStore(context.Background(), model.TrackedStore{
		Domain:            "shop.example.com",
		ProductCategories: []string{"kitchen"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.StoreID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTrackedStores(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"store_id", "domain", "categories", "product_ids", "created_at"}).
		AddRow("store-1", "shop.example.com", []byte(`["kitchen","coffee"]`), []byte(`["P-100"]`), created)
	mock.ExpectQuery("SELECT store_id, domain, categories, product_ids, created_at FROM tracked_stores").
		WillReturnRows(rows)

	stores, err := s.ListTrackedStores(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "store-1", stores[0].StoreID)
	assert.Equal(t, []string{"kitchen", "coffee"}, stores[0].ProductCategories)
	assert.Equal(t, []string{"P-100"}, stores[0].LastSeenProductIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UntrackStoreNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("DELETE FROM tracked_stores").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.UntrackStore(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(pgxmock.AnyArg(), "P-100", "Ceramic Pour Over Coffee Dripper", "accepted",
			pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	saved, err := s.SaveAnalysis(context.Background(), model.AnalysisRecord{
		ProductID: "P-100",
		Title:     "Ceramic Pour Over Coffee Dripper",
		Result:    sampleResult(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, model.VerdictAccepted, saved.Verdict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	result := sampleResult()
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)
	created := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "product_id", "title", "verdict", "result", "advisory", "created_at"}).
		AddRow("rec-1", "P-100", "Ceramic Pour Over Coffee Dripper", "accepted", resultJSON, "looks good", created)
	mock.ExpectQuery("SELECT id, product_id, title, verdict, result, advisory, created_at FROM analyses").
		WithArgs("rec-1").
		WillReturnRows(rows)

	got, err := s.GetAnalysis(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "P-100", got.ProductID)
	assert.Equal(t, model.VerdictAccepted, got.Result.Verdict)
	require.NotNil(t, got.Result.Momentum)
	assert.InDelta(t, 73.33, got.Result.Momentum.Score, 0.001)
	assert.Equal(t, "looks good", got.Advisory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysisNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT id, product_id, title, verdict, result, advisory, created_at FROM analyses").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "title", "verdict", "result", "advisory", "created_at"}))

	_, err := s.GetAnalysis(context.Background(), "missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAnalysesFilterPlaceholders(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	result := sampleResult()
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)
	created := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "product_id", "title", "verdict", "result", "advisory", "created_at"}).
		AddRow("rec-1", "P-100", "Ceramic Pour Over Coffee Dripper", "accepted", resultJSON, "", created)
	mock.ExpectQuery(`AND verdict = \$1 AND product_id = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("accepted", "P-100", 10, 5).
		WillReturnRows(rows)

	records, err := s.ListAnalyses(context.Background(), AnalysisFilter{
		Verdict:   model.VerdictAccepted,
		ProductID: "P-100",
		Limit:     10,
		Offset:    5,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
