package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vigiapreco/cmed-cli/internal/db"
	"github.com/vigiapreco/cmed-cli/internal/model"
)

// PoolConfig tunes the pgx connection pool.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// PostgresStore implements Store on PostgreSQL. It is meant for shared
// deployments where the lookup service and batch runs use one database.
type PostgresStore struct {
	pool   db.Pool
	closer func()
	log    *zap.Logger
}

// NewPostgres connects to PostgreSQL and verifies the connection.
func NewPostgres(ctx context.Context, dsn string, cfg PoolConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 2
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{
		pool:   pool,
		closer: pool.Close,
		log:    zap.L().With(zap.String("component", "store")),
	}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		log:  zap.L().With(zap.String("component", "store")),
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS match_runs (
	id           TEXT PRIMARY KEY,
	catalog_hash TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        JSONB,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS matched_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES match_runs(id),
	item       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS unresolved_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES match_runs(id),
	item       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS price_intervals (
	price_id   TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	vig_inicio TIMESTAMPTZ NOT NULL,
	vig_fim    TIMESTAMPTZ,
	pf0        TEXT,
	pf20       TEXT,
	pmvg0      TEXT,
	pmvg20     TEXT,
	cap        BOOLEAN NOT NULL DEFAULT false,
	icms0      BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_match_runs_status ON match_runs(status);
CREATE INDEX IF NOT EXISTS idx_match_runs_catalog ON match_runs(catalog_hash);
CREATE INDEX IF NOT EXISTS idx_matched_run_id ON matched_items(run_id);
CREATE INDEX IF NOT EXISTS idx_unresolved_run_id ON unresolved_items(run_id);
CREATE INDEX IF NOT EXISTS idx_price_intervals_product ON price_intervals(product_id, vig_inicio);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, catalogHash string) (*model.MatchRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_runs (id, catalog_hash, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, catalogHash, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.MatchRun{
		ID:          id,
		CatalogHash: catalogHash,
		Status:      model.RunStatusRunning,
		StartedAt:   now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE match_runs SET status = $1, stats = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE match_runs SET status = $1, finished_at = $2 WHERE id = $3`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.MatchRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, catalog_hash, status, stats, started_at, finished_at FROM match_runs WHERE id = $1`,
		runID,
	)
	return scanPGRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MatchRun, error) {
	query := `SELECT id, catalog_hash, status, stats, started_at, finished_at FROM match_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	if filter.CatalogHash != "" {
		args = append(args, filter.CatalogHash)
		query += ` AND catalog_hash = $` + itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.MatchRun
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveMatched(ctx context.Context, runID string, items []model.MatchedItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(items))
	for _, mi := range items {
		itemJSON, err := json.Marshal(mi)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal matched item")
		}
		rows = append(rows, []any{uuid.New().String(), runID, string(itemJSON), now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "matched_items",
		[]string{"id", "run_id", "item", "created_at"}, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: save matched for run %s", runID)
	}
	s.log.Info("saved matched items", zap.String("run_id", runID), zap.Int64("count", n))
	return nil
}

func (s *PostgresStore) ListMatched(ctx context.Context, runID string) ([]model.MatchedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item FROM matched_items WHERE run_id = $1 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matched")
	}
	defer rows.Close()

	var items []model.MatchedItem
	for rows.Next() {
		var itemJSON []byte
		if err := rows.Scan(&itemJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan matched item")
		}
		var mi model.MatchedItem
		if err := json.Unmarshal(itemJSON, &mi); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal matched item")
		}
		items = append(items, mi)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list matched iterate")
}

func (s *PostgresStore) SaveUnresolved(ctx context.Context, runID string, items []*model.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(items))
	for _, li := range items {
		itemJSON, err := json.Marshal(li)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal unresolved item")
		}
		rows = append(rows, []any{uuid.New().String(), runID, string(itemJSON), now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "unresolved_items",
		[]string{"id", "run_id", "item", "created_at"}, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: save unresolved for run %s", runID)
	}
	s.log.Info("saved unresolved items", zap.String("run_id", runID), zap.Int64("count", n))
	return nil
}

func (s *PostgresStore) ListUnresolved(ctx context.Context, runID string) ([]*model.InvoiceLineItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item FROM unresolved_items WHERE run_id = $1 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved")
	}
	defer rows.Close()

	var items []*model.InvoiceLineItem
	for rows.Next() {
		var itemJSON []byte
		if err := rows.Scan(&itemJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unresolved item")
		}
		var li model.InvoiceLineItem
		if err := json.Unmarshal(itemJSON, &li); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal unresolved item")
		}
		items = append(items, &li)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list unresolved iterate")
}

var intervalColumns = []string{
	"price_id", "product_id", "vig_inicio", "vig_fim",
	"pf0", "pf20", "pmvg0", "pmvg20", "cap", "icms0",
}

func (s *PostgresStore) SaveIntervals(ctx context.Context, intervals []model.PriceInterval) error {
	if len(intervals) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(intervals))
	for _, pi := range intervals {
		rows = append(rows, []any{
			pi.PriceID, pi.ProductID, pi.Start, endToDB(pi.End),
			decToDB(pi.PF0), decToDB(pi.PF20), decToDB(pi.PMVG0), decToDB(pi.PMVG20),
			pi.CAP, pi.ICMS0,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "price_intervals",
		Columns:      intervalColumns,
		ConflictKeys: []string{"price_id"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: save intervals")
	}
	s.log.Info("upserted price intervals", zap.Int64("count", n))
	return nil
}

func (s *PostgresStore) LoadIntervals(ctx context.Context) ([]model.PriceInterval, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT price_id, product_id, vig_inicio, vig_fim, pf0, pf20, pmvg0, pmvg20, cap, icms0
		 FROM price_intervals ORDER BY product_id, vig_inicio`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load intervals")
	}
	defer rows.Close()

	var intervals []model.PriceInterval
	for rows.Next() {
		var pi model.PriceInterval
		var end *time.Time
		var pf0, pf20, pmvg0, pmvg20 *string
		if err := rows.Scan(&pi.PriceID, &pi.ProductID, &pi.Start, &end,
			&pf0, &pf20, &pmvg0, &pmvg20, &pi.CAP, &pi.ICMS0); err != nil {
			return nil, eris.Wrap(err, "postgres: scan interval")
		}
		if end != nil {
			pi.End = *end
		}
		if pi.PF0, err = decFromPtr(pf0); err != nil {
			return nil, err
		}
		if pi.PF20, err = decFromPtr(pf20); err != nil {
			return nil, err
		}
		if pi.PMVG0, err = decFromPtr(pmvg0); err != nil {
			return nil, err
		}
		if pi.PMVG20, err = decFromPtr(pmvg20); err != nil {
			return nil, err
		}
		intervals = append(intervals, pi)
	}
	return intervals, eris.Wrap(rows.Err(), "postgres: load intervals iterate")
}

func scanPGRun(row pgx.Row) (*model.MatchRun, error) {
	var r model.MatchRun
	var statsJSON []byte
	var finished *time.Time

	err := row.Scan(&r.ID, &r.CatalogHash, &r.Status, &statsJSON, &r.StartedAt, &finished)
	if err == pgx.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if len(statsJSON) > 0 {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	r.FinishedAt = finished
	return &r, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func decFromPtr(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, eris.Wrapf(err, "store: parse stored decimal %q", *s)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
