package geocode

import (
	"context"
	"time"
)

// PlaceCache persists a parsed postal code dataset per country.
type PlaceCache interface {
	// LoadPlaces returns the stored dataset. A miss returns no places and a zero time.
	LoadPlaces(ctx context.Context, country string) ([]Place, time.Time, error)
	SavePlaces(ctx context.Context, country string, places []Place, fetchedAt time.Time) error
}
