// Package store persists downloaded dataset snapshots so later runs can skip
// the network.
package store

import (
	"context"
	"time"

	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/internal/taxtable"
	"github.com/sells-group/salestax-cli/pkg/geocode"
)

// Snapshot kinds.
const (
	KindTaxTable     = "tax_table"
	KindPostalPlaces = "postal_places"
)

// Snapshot describes one stored dataset. Only the latest snapshot per kind
// and source is kept.
type Snapshot struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      string    `json:"kind" yaml:"kind"`
	Source    string    `json:"source" yaml:"source"`
	Rows      int       `json:"rows" yaml:"rows"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Store caches the rate table and the postal code dataset.
type Store interface {
	taxtable.Cache
	geocode.PlaceCache

	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	// Clear deletes every snapshot and returns how many were removed.
	Clear(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

var (
	taxRateColumns = []string{"snapshot_id", "position", "city", "county", "rate"}
	placeColumns   = []string{
		"snapshot_id", "position", "postal_code", "place_name", "state_name",
		"state_code", "county_name", "county_code", "latitude", "longitude",
	}
)

func taxRateRow(snapshotID string, i int, r model.TaxTableRow) []any {
	return []any{snapshotID, i, r.City, r.County, r.Rate}
}

func placeRow(snapshotID string, i int, p geocode.Place) []any {
	return []any{
		snapshotID, i, p.PostalCode, p.PlaceName, p.StateName,
		p.StateCode, p.CountyName, p.CountyCode, p.Latitude, p.Longitude,
	}
}
