package location

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salestax-cli/pkg/geocode"
)

type fakeClient struct {
	places map[string]geocode.Place
	err    error
	calls  int
}

func (f *fakeClient) Lookup(_ context.Context, zip string) (*geocode.Place, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.places[zip]
	if !ok {
		return &geocode.Place{PostalCode: zip}, nil
	}
	p.Matched = true
	return &p, nil
}

func newFake() *fakeClient {
	return &fakeClient{places: map[string]geocode.Place{
		"92101": {PostalCode: "92101", PlaceName: "San Diego", StateName: "California", CountyName: "San Diego"},
		"94706": {PostalCode: "94706", PlaceName: "Albany, Kensington", StateName: "California", CountyName: "Alameda"},
		"89501": {PostalCode: "89501", PlaceName: "Reno", StateName: "Nevada", CountyName: "Washoe"},
		"96898": {PostalCode: "96898", PlaceName: "Wake Island"},
		"95000": {PostalCode: "95000", PlaceName: "  ", StateName: "California", CountyName: "Santa Cruz"},
	}}
}

func TestResolve(t *testing.T) {
	r := NewResolver(newFake())

	rec, err := r.Resolve(context.Background(), "92101")
	require.NoError(t, err)
	assert.Equal(t, "92101", rec.PostalCode)
	assert.Equal(t, "SAN DIEGO", rec.City)
	assert.Equal(t, "SAN DIEGO", rec.County)
	assert.Equal(t, "CALIFORNIA", rec.State)
}

func TestResolve_FirstPlaceSegment(t *testing.T) {
	rec, err := NewResolver(newFake()).Resolve(context.Background(), "94706")
	require.NoError(t, err)
	assert.Equal(t, "ALBANY", rec.City)
	assert.Equal(t, "ALAMEDA", rec.County)
}

func TestResolve_Miss(t *testing.T) {
	r := NewResolver(newFake())

	for _, zip := range []string{"00000", "96898", "95000"} {
		t.Run(zip, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), zip)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGeocoderMiss)
		})
	}
}

func TestResolve_OutOfDomain(t *testing.T) {
	rec, err := NewResolver(newFake()).Resolve(context.Background(), "89501")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfDomain)
	assert.Equal(t, "NEVADA", rec.State)
	assert.Equal(t, "RENO", rec.City)
}

func TestResolve_CustomDomain(t *testing.T) {
	r := NewResolver(newFake(), WithDomainState(" nevada "))
	assert.Equal(t, "NEVADA", r.DomainState())

	_, err := r.Resolve(context.Background(), "89501")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "92101")
	assert.ErrorIs(t, err, ErrOutOfDomain)

	assert.Equal(t, DefaultDomainState, NewResolver(newFake(), WithDomainState("")).DomainState())
}

func TestResolve_TransportError(t *testing.T) {
	boom := eris.New("connection refused")
	_, err := NewResolver(&fakeClient{err: boom}).Resolve(context.Background(), "92101")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrGeocoderMiss)
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver(newFake())
	first, err := r.Resolve(context.Background(), "92101")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "92101")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_NilAndUnmatched(t *testing.T) {
	assert.Equal(t, "12345", Normalize("12345", nil).PostalCode)
	rec := Normalize("12345", &geocode.Place{PlaceName: "Somewhere"})
	assert.Empty(t, rec.City)
}
