// Package location turns geocoder output into normalized location records.
package location

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/pkg/geocode"
)

// DefaultDomainState is the only state whose ZIP codes are served by default.
const DefaultDomainState = "CALIFORNIA"

var (
	// ErrGeocoderMiss means the geocoder has no place or county for the ZIP code.
	ErrGeocoderMiss = eris.New("no information found for ZIP code")
	// ErrOutOfDomain means the ZIP code resolved to a state that is not served.
	ErrOutOfDomain = eris.New("ZIP code is outside the supported state")
)

// Resolver normalizes geocoder results and enforces the domain state.
type Resolver struct {
	client      geocode.Client
	domainState string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDomainState overrides the served state. Blank keeps the default.
func WithDomainState(state string) Option {
	return func(r *Resolver) {
		if s := model.NormalizeName(state); s != "" {
			r.domainState = s
		}
	}
}

// NewResolver creates a Resolver over client.
func NewResolver(client geocode.Client, opts ...Option) *Resolver {
	r := &Resolver{client: client, domainState: DefaultDomainState}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DomainState returns the normalized served state.
func (r *Resolver) DomainState() string { return r.domainState }

// Resolve looks up zip and returns its normalized record. A record outside
// the domain state is returned together with ErrOutOfDomain.
func (r *Resolver) Resolve(ctx context.Context, zip string) (model.LocationRecord, error) {
	place, err := r.client.Lookup(ctx, zip)
	if err != nil {
		return model.LocationRecord{}, eris.Wrapf(err, "location: lookup %s", zip)
	}

	rec := Normalize(zip, place)
	if rec.City == "" || rec.County == "" {
		return rec, eris.Wrapf(ErrGeocoderMiss, "zip %s", zip)
	}
	if rec.State != r.domainState {
		zap.L().Debug("location: out of domain",
			zap.String("zip", zip),
			zap.String("state", rec.State),
		)
		return rec, eris.Wrapf(ErrOutOfDomain, "zip %s is in %s", zip, rec.State)
	}
	return rec, nil
}

// Normalize converts a geocoder place into a record. The city is the first
// comma-separated segment of the place name. Missing data becomes empty.
func Normalize(zip string, place *geocode.Place) model.LocationRecord {
	rec := model.LocationRecord{PostalCode: zip}
	if place == nil || !place.Matched {
		return rec
	}
	city, _, _ := strings.Cut(place.PlaceName, ",")
	rec.City = model.NormalizeName(city)
	rec.County = model.NormalizeName(place.CountyName)
	rec.State = model.NormalizeName(place.StateName)
	return rec
}
