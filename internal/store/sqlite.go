package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometries are
// stored as WKB blobs.
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	summary    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS hotspots (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	rank             INTEGER NOT NULL,
	restaurant_count INTEGER NOT NULL,
	popularity_score REAL NOT NULL,
	combined_score   REAL NOT NULL,
	dining_zone_id   INTEGER NOT NULL,
	arrival_area_id  INTEGER NOT NULL,
	geom             BLOB,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, summary, created_at) VALUES (?, ?, ?)`,
		run.ID, string(summary), run.CreatedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hotspots
		(run_id, rank, restaurant_count, popularity_score, combined_score, dining_zone_id, arrival_area_id, geom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare hotspot insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, h := range run.Hotspots {
		g, err := encodeWKB(h.Geometry)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, h.Rank, h.RestaurantCount, h.PopularityScore, h.CombinedScore,
			h.DiningZoneID, h.ArrivalAreaID, g,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert hotspot %d of run %s", h.Rank, run.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, summary, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT rank, restaurant_count, popularity_score, combined_score,
		dining_zone_id, arrival_area_id, geom FROM hotspots WHERE run_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query hotspots of run %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var h model.Hotspot
		var g []byte
		if err := rows.Scan(&h.Rank, &h.RestaurantCount, &h.PopularityScore, &h.CombinedScore,
			&h.DiningZoneID, &h.ArrivalAreaID, &g); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hotspot")
		}
		if h.Geometry, err = decodePolygon(g); err != nil {
			return nil, err
		}
		run.Hotspots = append(run.Hotspots, h)
	}
	return run, eris.Wrap(rows.Err(), "sqlite: iterate hotspots")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, summary, created_at FROM runs WHERE 1=1`
	var args []any
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())
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

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summary string
	var created time.Time

	err := row.Scan(&r.ID, &summary, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.CreatedAt = created.UTC()
	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	return &r, nil
}
