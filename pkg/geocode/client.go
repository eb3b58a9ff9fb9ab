// Package geocode resolves US postal codes to places using the GeoNames
// postal code dump.
package geocode

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/fetcher"
)

// DefaultBaseURL hosts the per-country postal code archives.
const DefaultBaseURL = "https://download.geonames.org/export/zip"

// Client looks up postal codes.
type Client interface {
	// Lookup returns the place for a postal code. An unknown code is not an
	// error; it returns a Place with Matched=false.
	Lookup(ctx context.Context, postalCode string) (*Place, error)
}

// Place is one postal code entry. Fields the dataset leaves blank are empty.
type Place struct {
	PostalCode string  `json:"postal_code"`
	PlaceName  string  `json:"place_name"` // comma-joined when a code spans several places
	StateName  string  `json:"state_name"`
	StateCode  string  `json:"state_code"`
	CountyName string  `json:"county_name"`
	CountyCode string  `json:"county_code"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Matched    bool    `json:"-"`
}

// Option configures the geocoder.
type Option func(*Geocoder)

// WithBaseURL overrides the archive host.
func WithBaseURL(u string) Option {
	return func(g *Geocoder) {
		g.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCountry selects the country archive. Defaults to US.
func WithCountry(code string) Option {
	return func(g *Geocoder) {
		g.country = strings.ToUpper(strings.TrimSpace(code))
	}
}

// WithPlaceCache stores the parsed dataset and serves it while younger than ttl.
func WithPlaceCache(c PlaceCache, ttl time.Duration) Option {
	return func(g *Geocoder) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

// WithTempDir sets where archives are downloaded and extracted.
func WithTempDir(dir string) Option {
	return func(g *Geocoder) {
		g.tempDir = dir
	}
}

// Geocoder is a Client backed by an in-memory index of one country's dataset.
type Geocoder struct {
	fetcher  fetcher.Fetcher
	baseURL  string
	country  string
	tempDir  string
	cache    PlaceCache
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	index map[string]Place
}

// NewClient creates a Client that downloads the dataset on first use.
func NewClient(f fetcher.Fetcher, opts ...Option) *Geocoder {
	g := &Geocoder{
		fetcher: f,
		baseURL: DefaultBaseURL,
		country: "US",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Lookup implements Client.
func (g *Geocoder) Lookup(ctx context.Context, postalCode string) (*Place, error) {
	index, err := g.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(postalCode)
	p, ok := index[code]
	if !ok {
		zap.L().Debug("geocode: postal code not in dataset", zap.String("postal_code", code))
		return &Place{PostalCode: code, Matched: false}, nil
	}
	p.Matched = true
	return &p, nil
}

// Len returns the number of postal codes loaded, or zero before first use.
func (g *Geocoder) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.index)
}

// Refresh downloads the dataset, replaces the index and updates the cache.
func (g *Geocoder) Refresh(ctx context.Context) (int, error) {
	places, err := g.download(ctx)
	if err != nil {
		return 0, err
	}
	if g.cache != nil {
		if err := g.cache.SavePlaces(ctx, g.country, places, g.now()); err != nil {
			return 0, err
		}
	}
	index := buildIndex(places)

	g.mu.Lock()
	g.index = index
	g.mu.Unlock()
	return len(index), nil
}

// ensureLoaded builds the index once. A failed load is retried on the next call.
func (g *Geocoder) ensureLoaded(ctx context.Context) (map[string]Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index != nil {
		return g.index, nil
	}

	places, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	g.index = buildIndex(places)
	zap.L().Info("geocode: dataset loaded",
		zap.String("country", g.country),
		zap.Int("postal_codes", len(g.index)),
	)
	return g.index, nil
}

func (g *Geocoder) load(ctx context.Context) ([]Place, error) {
	if g.cache == nil {
		return g.download(ctx)
	}

	cached, fetchedAt, err := g.cache.LoadPlaces(ctx, g.country)
	if err != nil {
		zap.L().Warn("geocode: cache read failed", zap.Error(err))
		cached = nil
	}
	if len(cached) > 0 && g.cacheTTL > 0 && g.now().Sub(fetchedAt) < g.cacheTTL {
		return cached, nil
	}

	places, err := g.download(ctx)
	if err != nil {
		if len(cached) > 0 {
			zap.L().Warn("geocode: using stale dataset", zap.Time("fetched_at", fetchedAt), zap.Error(err))
			return cached, nil
		}
		return nil, err
	}
	if err := g.cache.SavePlaces(ctx, g.country, places, g.now()); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.Error(err))
	}
	return places, nil
}

// buildIndex merges entries sharing a postal code. The first entry supplies
// the administrative fields; later distinct place names are appended.
func buildIndex(places []Place) map[string]Place {
	index := make(map[string]Place, len(places))
	for _, p := range places {
		existing, ok := index[p.PostalCode]
		if !ok {
			index[p.PostalCode] = p
			continue
		}
		if p.PlaceName != "" && !containsName(existing.PlaceName, p.PlaceName) {
			if existing.PlaceName == "" {
				existing.PlaceName = p.PlaceName
			} else {
				existing.PlaceName += ", " + p.PlaceName
			}
			index[p.PostalCode] = existing
		}
	}
	return index
}

func containsName(joined, name string) bool {
	for _, n := range strings.Split(joined, ", ") {
		if n == name {
			return true
		}
	}
	return false
}
