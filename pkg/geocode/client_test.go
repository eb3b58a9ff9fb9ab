package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv, _ := newDatasetServer(t, usDataset)
	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))

	p, err := g.Lookup(context.Background(), "92101")
	require.NoError(t, err)
	require.True(t, p.Matched)
	assert.Equal(t, "San Diego", p.PlaceName)
	assert.Equal(t, "California", p.StateName)
	assert.Equal(t, "CA", p.StateCode)
	assert.Equal(t, "San Diego", p.CountyName)
	assert.Equal(t, "073", p.CountyCode)
	assert.InDelta(t, 32.7194, p.Latitude, 1e-9)
	assert.InDelta(t, -117.1628, p.Longitude, 1e-9)
}

func TestLookup_Miss(t *testing.T) {
	srv, _ := newDatasetServer(t, usDataset)
	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))

	p, err := g.Lookup(context.Background(), "00000")
	require.NoError(t, err)
	assert.False(t, p.Matched)
	assert.Equal(t, "00000", p.PostalCode)
}

func TestLookup_SharedPostalCodeJoinsPlaceNames(t *testing.T) {
	srv, _ := newDatasetServer(t, usDataset)
	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))

	p, err := g.Lookup(context.Background(), "94706")
	require.NoError(t, err)
	assert.Equal(t, "Albany, Kensington", p.PlaceName)
	assert.Equal(t, "Alameda", p.CountyName)
}

func TestLookup_BlankFields(t *testing.T) {
	srv, _ := newDatasetServer(t, usDataset)
	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))

	p, err := g.Lookup(context.Background(), "96898")
	require.NoError(t, err)
	assert.True(t, p.Matched)
	assert.Empty(t, p.StateName)
	assert.Empty(t, p.CountyName)
}

func TestLookup_LoadsOnce(t *testing.T) {
	srv, hits := newDatasetServer(t, usDataset)
	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))
	assert.Equal(t, 0, g.Len())

	first, err := g.Lookup(context.Background(), "90001")
	require.NoError(t, err)
	second, err := g.Lookup(context.Background(), "90001")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 5, g.Len())
}

func TestLookup_DownloadFailureIsRetriedNextCall(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	archive := zipArchive(t, "US.txt", usDataset)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))
	_, err := g.Lookup(context.Background(), "92101")
	require.Error(t, err)

	fail.Store(false)
	p, err := g.Lookup(context.Background(), "92101")
	require.NoError(t, err)
	assert.True(t, p.Matched)
}

func TestLookup_MissingEntryInArchive(t *testing.T) {
	archive := zipArchive(t, "CA.txt", usDataset)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))
	_, err := g.Lookup(context.Background(), "92101")
	assert.Error(t, err)
}

func TestLookup_EmptyDataset(t *testing.T) {
	srv, _ := newDatasetServer(t, "")
	g := NewClient(newTestFetcher(srv), WithTempDir(t.TempDir()))
	_, err := g.Lookup(context.Background(), "92101")
	assert.Error(t, err)
}

func TestArchiveURL(t *testing.T) {
	g := NewClient(nil, WithBaseURL("https://mirror.example.com/zip/"), WithCountry("pr"))
	assert.Equal(t, "https://mirror.example.com/zip/PR.zip", g.ArchiveURL())
	assert.Equal(t, DefaultBaseURL+"/US.zip", NewClient(nil).ArchiveURL())
}

func TestPlaceFromRow(t *testing.T) {
	_, ok := placeFromRow([]string{"US", "92101", "San Diego"})
	assert.False(t, ok)

	_, ok = placeFromRow([]string{"US", "", "San Diego", "California", "CA", "San Diego"})
	assert.False(t, ok)

	p, ok := placeFromRow([]string{"US", "92101", "San Diego", "California", "CA", "San Diego"})
	require.True(t, ok)
	assert.Empty(t, p.CountyCode)
	assert.Zero(t, p.Latitude)
}
