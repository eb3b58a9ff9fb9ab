package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/pkg/geocode"
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
	// Pragmas below are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	source     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tax_rates (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	position    INTEGER NOT NULL,
	city        TEXT NOT NULL,
	county      TEXT NOT NULL,
	rate        TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, position)
);

CREATE TABLE IF NOT EXISTS postal_places (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	position    INTEGER NOT NULL,
	postal_code TEXT NOT NULL,
	place_name  TEXT NOT NULL,
	state_name  TEXT NOT NULL,
	state_code  TEXT NOT NULL,
	county_name TEXT NOT NULL,
	county_code TEXT NOT NULL,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	PRIMARY KEY (snapshot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_kind_source ON snapshots(kind, source, fetched_at);
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

func (s *SQLiteStore) latest(ctx context.Context, kind, source string) (string, time.Time, error) {
	var id string
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fetched_at FROM snapshots WHERE kind = ? AND source = ? ORDER BY fetched_at DESC LIMIT 1`,
		kind, source,
	).Scan(&id, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, eris.Wrapf(err, "sqlite: latest %s snapshot", kind)
	}
	return id, fetchedAt, nil
}

// LoadTaxTable implements taxtable.Cache.
func (s *SQLiteStore) LoadTaxTable(ctx context.Context, source string) ([]model.TaxTableRow, time.Time, error) {
	id, fetchedAt, err := s.latest(ctx, KindTaxTable, source)
	if err != nil || id == "" {
		return nil, time.Time{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT city, county, rate FROM tax_rates WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: query tax rates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.TaxTableRow
	for rows.Next() {
		var r model.TaxTableRow
		if err := rows.Scan(&r.City, &r.County, &r.Rate); err != nil {
			return nil, time.Time{}, eris.Wrap(err, "sqlite: scan tax rate")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: iterate tax rates")
	}
	return out, fetchedAt, nil
}

// SaveTaxTable implements taxtable.Cache.
func (s *SQLiteStore) SaveTaxTable(ctx context.Context, source string, rows []model.TaxTableRow, fetchedAt time.Time) error {
	values := make([][]any, 0, len(rows))
	id := uuid.NewString()
	for i, r := range rows {
		values = append(values, taxRateRow(id, i, r))
	}
	return s.replace(ctx, id, KindTaxTable, source, fetchedAt, "tax_rates", taxRateColumns, values)
}

// LoadPlaces implements geocode.PlaceCache.
func (s *SQLiteStore) LoadPlaces(ctx context.Context, country string) ([]geocode.Place, time.Time, error) {
	id, fetchedAt, err := s.latest(ctx, KindPostalPlaces, country)
	if err != nil || id == "" {
		return nil, time.Time{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT postal_code, place_name, state_name, state_code, county_name, county_code, latitude, longitude
		FROM postal_places WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: query postal places")
	}
	defer rows.Close() //nolint:errcheck

	var out []geocode.Place
	for rows.Next() {
		var p geocode.Place
		if err := rows.Scan(&p.PostalCode, &p.PlaceName, &p.StateName, &p.StateCode,
			&p.CountyName, &p.CountyCode, &p.Latitude, &p.Longitude); err != nil {
			return nil, time.Time{}, eris.Wrap(err, "sqlite: scan postal place")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: iterate postal places")
	}
	return out, fetchedAt, nil
}

// SavePlaces implements geocode.PlaceCache.
func (s *SQLiteStore) SavePlaces(ctx context.Context, country string, places []geocode.Place, fetchedAt time.Time) error {
	values := make([][]any, 0, len(places))
	id := uuid.NewString()
	for i, p := range places {
		values = append(values, placeRow(id, i, p))
	}
	return s.replace(ctx, id, KindPostalPlaces, country, fetchedAt, "postal_places", placeColumns, values)
}

// replace swaps the snapshot for kind and source in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, id, kind, source string, fetchedAt time.Time, table string, columns []string, values [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE snapshot_id IN (SELECT id FROM snapshots WHERE kind = ? AND source = ?)`, table),
		kind, source,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete old %s", table)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE kind = ? AND source = ?`, kind, source); err != nil {
		return eris.Wrap(err, "sqlite: delete old snapshot")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, kind, source, row_count, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, source, len(values), fetchedAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "sqlite: insert snapshot")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", table)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot")
}

// ListSnapshots returns every stored snapshot ordered by kind and source.
func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, source, row_count, fetched_at FROM snapshots ORDER BY kind, source`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.Kind, &sn.Source, &sn.Rows, &sn.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, sn)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"tax_rates", "postal_places"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear snapshots")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit clear")
}
