package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-hotspots/internal/db"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/resilience"
)

// PostgresStore implements Store on PostGIS. Hotspot geometries are
// bulk-loaded as EWKB and exposed to spatial queries through a generated
// geometry column.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	summary    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hotspots (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	rank             INTEGER NOT NULL,
	restaurant_count INTEGER NOT NULL,
	popularity_score DOUBLE PRECISION NOT NULL,
	combined_score   DOUBLE PRECISION NOT NULL,
	dining_zone_id   INTEGER NOT NULL,
	arrival_area_id  INTEGER NOT NULL,
	geom_ewkb        BYTEA,
	geom             geometry(Polygon, 4326) GENERATED ALWAYS AS (ST_GeomFromEWKB(geom_ewkb)) STORED,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_hotspots_geom ON hotspots USING GIST (geom);
`

var hotspotColumns = []string{
	"run_id", "rank", "restaurant_count", "popularity_score", "combined_score",
	"dining_zone_id", "arrival_area_id", "geom_ewkb",
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	rows := make([][]any, 0, len(run.Hotspots))
	for _, h := range run.Hotspots {
		g, err := encodeEWKB(h.Geometry)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			run.ID, h.Rank, h.RestaurantCount, h.PopularityScore, h.CombinedScore,
			h.DiningZoneID, h.ArrivalAreaID, g,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (id, summary, created_at) VALUES ($1, $2, $3)`,
		run.ID, summary, run.CreatedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}
	if _, err := db.CopyFrom(ctx, tx, "hotspots", hotspotColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy hotspots of run %s", run.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	run, err := scanPostgresRun(s.pool.QueryRow(ctx,
		`SELECT id, summary, created_at FROM runs WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT rank, restaurant_count, popularity_score, combined_score,
		dining_zone_id, arrival_area_id, geom_ewkb FROM hotspots WHERE run_id = $1 ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query hotspots of run %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var h model.Hotspot
		var g []byte
		if err := rows.Scan(&h.Rank, &h.RestaurantCount, &h.PopularityScore, &h.CombinedScore,
			&h.DiningZoneID, &h.ArrivalAreaID, &g); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hotspot")
		}
		if h.Geometry, err = decodePolygon(g); err != nil {
			return nil, err
		}
		run.Hotspots = append(run.Hotspots, h)
	}
	return run, eris.Wrap(rows.Err(), "postgres: iterate hotspots")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	since := filter.Since
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, summary, created_at FROM runs WHERE created_at >= $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		since, filter.limit(), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var summary []byte
	err := row.Scan(&r.ID, &summary, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal summary")
	}
	return &r, nil
}
