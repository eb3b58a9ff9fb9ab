package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/salestax-cli/internal/db"
	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
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

	maxConns := int32(4)
	minConns := int32(0)
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
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	source     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tax_rates (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	city        TEXT NOT NULL,
	county      TEXT NOT NULL,
	rate        TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, position)
);

CREATE TABLE IF NOT EXISTS postal_places (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	postal_code TEXT NOT NULL,
	place_name  TEXT NOT NULL,
	state_name  TEXT NOT NULL,
	state_code  TEXT NOT NULL,
	county_name TEXT NOT NULL,
	county_code TEXT NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (snapshot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_kind_source ON snapshots(kind, source, fetched_at DESC);
`

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
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

func (s *PostgresStore) latest(ctx context.Context, kind, source string) (string, time.Time, error) {
	var id string
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, fetched_at FROM snapshots WHERE kind = $1 AND source = $2 ORDER BY fetched_at DESC LIMIT 1`,
		kind, source,
	).Scan(&id, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, eris.Wrapf(err, "postgres: latest %s snapshot", kind)
	}
	return id, fetchedAt, nil
}

// LoadTaxTable implements taxtable.Cache.
func (s *PostgresStore) LoadTaxTable(ctx context.Context, source string) ([]model.TaxTableRow, time.Time, error) {
	id, fetchedAt, err := s.latest(ctx, KindTaxTable, source)
	if err != nil || id == "" {
		return nil, time.Time{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT city, county, rate FROM tax_rates WHERE snapshot_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: query tax rates")
	}
	defer rows.Close()

	var out []model.TaxTableRow
	for rows.Next() {
		var r model.TaxTableRow
		if err := rows.Scan(&r.City, &r.County, &r.Rate); err != nil {
			return nil, time.Time{}, eris.Wrap(err, "postgres: scan tax rate")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: iterate tax rates")
	}
	return out, fetchedAt, nil
}

// SaveTaxTable implements taxtable.Cache.
func (s *PostgresStore) SaveTaxTable(ctx context.Context, source string, rows []model.TaxTableRow, fetchedAt time.Time) error {
	id := uuid.NewString()
	values := make([][]any, 0, len(rows))
	for i, r := range rows {
		values = append(values, taxRateRow(id, i, r))
	}
	return s.replace(ctx, id, KindTaxTable, source, fetchedAt, "tax_rates", taxRateColumns, values)
}

// LoadPlaces implements geocode.PlaceCache.
func (s *PostgresStore) LoadPlaces(ctx context.Context, country string) ([]geocode.Place, time.Time, error) {
	id, fetchedAt, err := s.latest(ctx, KindPostalPlaces, country)
	if err != nil || id == "" {
		return nil, time.Time{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT postal_code, place_name, state_name, state_code, county_name, county_code, latitude, longitude
		FROM postal_places WHERE snapshot_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: query postal places")
	}
	defer rows.Close()

	var out []geocode.Place
	for rows.Next() {
		var p geocode.Place
		if err := rows.Scan(&p.PostalCode, &p.PlaceName, &p.StateName, &p.StateCode,
			&p.CountyName, &p.CountyCode, &p.Latitude, &p.Longitude); err != nil {
			return nil, time.Time{}, eris.Wrap(err, "postgres: scan postal place")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: iterate postal places")
	}
	return out, fetchedAt, nil
}

// SavePlaces implements geocode.PlaceCache.
func (s *PostgresStore) SavePlaces(ctx context.Context, country string, places []geocode.Place, fetchedAt time.Time) error {
	id := uuid.NewString()
	values := make([][]any, 0, len(places))
	for i, p := range places {
		values = append(values, placeRow(id, i, p))
	}
	return s.replace(ctx, id, KindPostalPlaces, country, fetchedAt, "postal_places", placeColumns, values)
}

// replace swaps the snapshot for kind and source in one transaction. Child
// rows of the old snapshot go with it through ON DELETE CASCADE.
func (s *PostgresStore) replace(ctx context.Context, id, kind, source string, fetchedAt time.Time, table string, columns []string, values [][]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM snapshots WHERE kind = $1 AND source = $2`, kind, source); err != nil {
		return eris.Wrap(err, "postgres: delete old snapshot")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, kind, source, row_count, fetched_at) VALUES ($1, $2, $3, $4, $5)`,
		id, kind, source, len(values), fetchedAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "postgres: insert snapshot")
	}

	n, err := db.CopyFrom(ctx, tx, table, columns, values)
	if err != nil {
		return err
	}
	if n != int64(len(values)) {
		return eris.Errorf("postgres: copied %d of %d rows into %s", n, len(values), table)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit snapshot")
}

// ListSnapshots returns every stored snapshot ordered by kind and source.
func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, source, row_count, fetched_at FROM snapshots ORDER BY kind, source`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.Kind, &sn.Source, &sn.Rows, &sn.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, sn)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate snapshots")
}

// Clear implements Store.
func (s *PostgresStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear snapshots")
	}
	return tag.RowsAffected(), nil
}
