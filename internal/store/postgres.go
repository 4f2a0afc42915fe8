package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dropsight/sourcing-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tracked_stores (
	store_id    TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	categories  JSONB NOT NULL DEFAULT '[]',
	product_ids JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	verdict    TEXT NOT NULL,
	result     JSONB NOT NULL,
	advisory   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_product_id ON analyses(product_id);
CREATE INDEX IF NOT EXISTS idx_analyses_verdict ON analyses(verdict);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) TrackStore(ctx context.Context, ts model.TrackedStore) (*model.TrackedStore, error) {
	if ts.StoreID == "" {
		ts.StoreID = uuid.New().String()
	}
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = time.Now().UTC()
	}

	categories, err := json.Marshal(ts.ProductCategories)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal categories")
	}
	productIDs, err := json.Marshal(ts.LastSeenProductIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal product ids")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracked_stores (store_id, domain, categories, product_ids, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (store_id) DO UPDATE SET domain = EXCLUDED.domain, categories = EXCLUDED.categories, product_ids = EXCLUDED.product_ids`,
		ts.StoreID, ts.Domain, categories, productIDs, ts.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: track store %s", ts.StoreID)
	}

	return &ts, nil
}

func (s *PostgresStore) ListTrackedStores(ctx context.Context) ([]model.TrackedStore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT store_id, domain, categories, product_ids, created_at FROM tracked_stores ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tracked stores")
	}
	defer rows.Close()

	var stores []model.TrackedStore
	for rows.Next() {
		var ts model.TrackedStore
		var categories, productIDs []byte
		if err := rows.Scan(&ts.StoreID, &ts.Domain, &categories, &productIDs, &ts.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tracked store")
		}
		if err := json.Unmarshal(categories, &ts.ProductCategories); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal categories for %s", ts.StoreID)
		}
		if err := json.Unmarshal(productIDs, &ts.LastSeenProductIDs); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal product ids for %s", ts.StoreID)
		}
		stores = append(stores, ts)
	}
	return stores, eris.Wrap(rows.Err(), "postgres: list tracked stores iterate")
}

func (s *PostgresStore) UntrackStore(ctx context.Context, storeID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracked_stores WHERE store_id = $1`, storeID)
	if err != nil {
		return eris.Wrapf(err, "postgres: untrack store %s", storeID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: tracked store %s not found", storeID)
	}
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, rec model.AnalysisRecord) (*model.AnalysisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Verdict = rec.Result.Verdict

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal analysis result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, product_id, title, verdict, result, advisory, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ProductID, rec.Title, string(rec.Verdict), resultJSON, rec.Advisory, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save analysis %s", rec.ID)
	}

	return &rec, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, product_id, title, verdict, result, advisory, created_at FROM analyses WHERE id = $1`,
		id,
	)

	rec, err := scanPgAnalysis(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return rec, err
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT id, product_id, title, verdict, result, advisory, created_at FROM analyses WHERE 1=1`
	var args []any

	if filter.Verdict != "" {
		args = append(args, string(filter.Verdict))
		query += ` AND verdict = $1`
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += ` AND product_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var records []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanPgAnalysis(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func scanPgAnalysis(scan func(dest ...any) error) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var verdict string
	var result []byte
	if err := scan(&rec.ID, &rec.ProductID, &rec.Title, &verdict, &result, &rec.Advisory, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan analysis")
	}
	rec.Verdict = model.Verdict(verdict)
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal analysis result %s", rec.ID)
	}
	return &rec, nil
}

