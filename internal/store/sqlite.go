package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// default backend for single-machine batch runs.
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
CREATE TABLE IF NOT EXISTS match_runs (
	id           TEXT PRIMARY KEY,
	catalog_hash TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at  DATETIME
);

CREATE TABLE IF NOT EXISTS matched_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES match_runs(id),
	item       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS unresolved_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES match_runs(id),
	item       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS price_intervals (
	price_id   TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	vig_inicio DATETIME NOT NULL,
	vig_fim    DATETIME,
	pf0        TEXT,
	pf20       TEXT,
	pmvg0      TEXT,
	pmvg20     TEXT,
	cap        INTEGER NOT NULL DEFAULT 0,
	icms0      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_match_runs_status ON match_runs(status);
CREATE INDEX IF NOT EXISTS idx_match_runs_catalog ON match_runs(catalog_hash);
CREATE INDEX IF NOT EXISTS idx_matched_run_id ON matched_items(run_id);
CREATE INDEX IF NOT EXISTS idx_unresolved_run_id ON unresolved_items(run_id);
CREATE INDEX IF NOT EXISTS idx_price_intervals_product ON price_intervals(product_id, vig_inicio);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, catalogHash string) (*model.MatchRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_runs (id, catalog_hash, status, started_at) VALUES (?, ?, ?, ?)`,
		id, catalogHash, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.MatchRun{
		ID:          id,
		CatalogHash: catalogHash,
		Status:      model.RunStatusRunning,
		StartedAt:   now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE match_runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.MatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, catalog_hash, status, stats, started_at, finished_at FROM match_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MatchRun, error) {
	query := `SELECT id, catalog_hash, status, stats, started_at, finished_at FROM match_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CatalogHash != "" {
		query += ` AND catalog_hash = ?`
		args = append(args, filter.CatalogHash)
	}
	query += ` ORDER BY started_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.MatchRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveMatched(ctx context.Context, runID string, items []model.MatchedItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin matched tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matched_items (id, run_id, item, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare matched insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, mi := range items {
		itemJSON, err := json.Marshal(mi)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal matched item")
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), runID, string(itemJSON), now); err != nil {
			return eris.Wrapf(err, "sqlite: insert matched item for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit matched tx")
}

func (s *SQLiteStore) ListMatched(ctx context.Context, runID string) ([]model.MatchedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item FROM matched_items WHERE run_id = ? ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matched")
	}
	defer rows.Close()

	var items []model.MatchedItem
	for rows.Next() {
		var itemJSON string
		if err := rows.Scan(&itemJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan matched item")
		}
		var mi model.MatchedItem
		if err := json.Unmarshal([]byte(itemJSON), &mi); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal matched item")
		}
		items = append(items, mi)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list matched iterate")
}

func (s *SQLiteStore) SaveUnresolved(ctx context.Context, runID string, items []*model.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin unresolved tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO unresolved_items (id, run_id, item, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare unresolved insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, li := range items {
		itemJSON, err := json.Marshal(li)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal unresolved item")
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), runID, string(itemJSON), now); err != nil {
			return eris.Wrapf(err, "sqlite: insert unresolved item for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit unresolved tx")
}

func (s *SQLiteStore) ListUnresolved(ctx context.Context, runID string) ([]*model.InvoiceLineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item FROM unresolved_items WHERE run_id = ? ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved")
	}
	defer rows.Close()

	var items []*model.InvoiceLineItem
	for rows.Next() {
		var itemJSON string
		if err := rows.Scan(&itemJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved item")
		}
		var li model.InvoiceLineItem
		if err := json.Unmarshal([]byte(itemJSON), &li); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal unresolved item")
		}
		items = append(items, &li)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list unresolved iterate")
}

func (s *SQLiteStore) SaveIntervals(ctx context.Context, intervals []model.PriceInterval) error {
	if len(intervals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin intervals tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO price_intervals
		 (price_id, product_id, vig_inicio, vig_fim, pf0, pf20, pmvg0, pmvg20, cap, icms0)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare interval insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, pi := range intervals {
		if _, err := stmt.ExecContext(ctx,
			pi.PriceID, pi.ProductID, pi.Start, endToDB(pi.End),
			decToDB(pi.PF0), decToDB(pi.PF20), decToDB(pi.PMVG0), decToDB(pi.PMVG20),
			pi.CAP, pi.ICMS0,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert interval %s", pi.PriceID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit intervals tx")
}

func (s *SQLiteStore) LoadIntervals(ctx context.Context) ([]model.PriceInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price_id, product_id, vig_inicio, vig_fim, pf0, pf20, pmvg0, pmvg20, cap, icms0
		 FROM price_intervals ORDER BY product_id, vig_inicio`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load intervals")
	}
	defer rows.Close()

	var intervals []model.PriceInterval
	for rows.Next() {
		var pi model.PriceInterval
		var end sql.NullTime
		var pf0, pf20, pmvg0, pmvg20 sql.NullString
		if err := rows.Scan(&pi.PriceID, &pi.ProductID, &pi.Start, &end,
			&pf0, &pf20, &pmvg0, &pmvg20, &pi.CAP, &pi.ICMS0); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan interval")
		}
		if end.Valid {
			pi.End = end.Time
		}
		if pi.PF0, err = decFromDB(pf0); err != nil {
			return nil, err
		}
		if pi.PF20, err = decFromDB(pf20); err != nil {
			return nil, err
		}
		if pi.PMVG0, err = decFromDB(pmvg0); err != nil {
			return nil, err
		}
		if pi.PMVG20, err = decFromDB(pmvg20); err != nil {
			return nil, err
		}
		intervals = append(intervals, pi)
	}
	return intervals, eris.Wrap(rows.Err(), "sqlite: load intervals iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.MatchRun, error) {
	var r model.MatchRun
	var statsJSON sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.CatalogHash, &r.Status, &statsJSON, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if statsJSON.Valid {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func endToDB(end time.Time) any {
	if end.IsZero() {
		return nil
	}
	return end
}

func decToDB(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func decFromDB(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, eris.Wrapf(err, "store: parse stored decimal %q", s.String)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
