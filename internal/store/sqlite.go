package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dropsight/sourcing-cli/internal/model"
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tracked_stores (
	store_id    TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	categories  TEXT NOT NULL DEFAULT '[]',
	product_ids TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	verdict    TEXT NOT NULL,
	result     TEXT NOT NULL,
	advisory   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_product_id ON analyses(product_id);
CREATE INDEX IF NOT EXISTS idx_analyses_verdict ON analyses(verdict);
CREATE INDEX IF NOT EXISTS idx_tracked_stores_domain ON tracked_stores(domain);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) TrackStore(ctx context.Context, ts model.TrackedStore) (*model.TrackedStore, error) {
	if ts.StoreID == "" {
		ts.StoreID = uuid.New().String()
	}
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = time.Now().UTC()
	}

	categories, err := json.Marshal(ts.ProductCategories)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal categories")
	}
	productIDs, err := json.Marshal(ts.LastSeenProductIDs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal product ids")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tracked_stores (store_id, domain, categories, product_ids, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(store_id) DO UPDATE SET domain = excluded.domain, categories = excluded.categories, product_ids = excluded.product_ids`,
		ts.StoreID, ts.Domain, string(categories), string(productIDs), ts.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: track store %s", ts.StoreID)
	}

	return &ts, nil
}

func (s *SQLiteStore) ListTrackedStores(ctx context.Context) ([]model.TrackedStore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, domain, categories, product_ids, created_at FROM tracked_stores ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tracked stores")
	}
	defer rows.Close()

	var stores []model.TrackedStore
	for rows.Next() {
		var ts model.TrackedStore
		var categories, productIDs string
		if err := rows.Scan(&ts.StoreID, &ts.Domain, &categories, &productIDs, &ts.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tracked store")
		}
		if err := json.Unmarshal([]byte(categories), &ts.ProductCategories); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal categories for %s", ts.StoreID)
		}
		if err := json.Unmarshal([]byte(productIDs), &ts.LastSeenProductIDs); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal product ids for %s", ts.StoreID)
		}
		stores = append(stores, ts)
	}
	return stores, eris.Wrap(rows.Err(), "sqlite: list tracked stores iterate")
}

func (s *SQLiteStore) UntrackStore(ctx context.Context, storeID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_stores WHERE store_id = ?`, storeID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: untrack store %s", storeID)
	}
	return checkRowsAffected(res, "tracked store", storeID)
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec model.AnalysisRecord) (*model.AnalysisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Verdict = rec.Result.Verdict

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal analysis result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, product_id, title, verdict, result, advisory, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProductID, rec.Title, string(rec.Verdict), string(resultJSON), rec.Advisory, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save analysis %s", rec.ID)
	}

	return &rec, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, title, verdict, result, advisory, created_at FROM analyses WHERE id = ?`,
		id,
	)
	rec, err := scanAnalysis(row.Scan)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: analysis %s not found", id)
	}
	return rec, err
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT id, product_id, title, verdict, result, advisory, created_at FROM analyses WHERE 1=1`
	var args []any

	if filter.Verdict != "" {
		query += ` AND verdict = ?`
		args = append(args, string(filter.Verdict))
	}
	if filter.ProductID != "" {
		query += ` AND product_id = ?`
		args = append(args, filter.ProductID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var records []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

// scanAnalysis reads one analyses row via the given scan function so it
// works for both QueryRow and Rows.
func scanAnalysis(scan func(dest ...any) error) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var verdict, result string
	if err := scan(&rec.ID, &rec.ProductID, &rec.Title, &verdict, &result, &rec.Advisory, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan analysis")
	}
	rec.Verdict = model.Verdict(verdict)
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal analysis result %s", rec.ID)
	}
	return &rec, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
