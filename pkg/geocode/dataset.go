package geocode

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salestax-cli/internal/fetcher"
)

// GeoNames postal code columns.
const (
	colPostalCode = 1
	colPlaceName  = 2
	colStateName  = 3
	colStateCode  = 4
	colCountyName = 5
	colCountyCode = 6
	colLatitude   = 9
	colLongitude  = 10
	minColumns    = colCountyName + 1
)

// ArchiveURL returns the archive location for the configured country.
func (g *Geocoder) ArchiveURL() string {
	return g.baseURL + "/" + g.country + ".zip"
}

// download fetches the country archive and parses its tab-separated entry.
func (g *Geocoder) download(ctx context.Context) ([]Place, error) {
	dir, err := os.MkdirTemp(g.tempDir, "salestax-geonames-")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	zipPath := filepath.Join(dir, g.country+".zip")
	if _, err := g.fetcher.DownloadToFile(ctx, g.ArchiveURL(), zipPath); err != nil {
		return nil, eris.Wrap(err, "geocode: download archive")
	}

	txtPath, err := fetcher.ExtractZIPFile(zipPath, g.country+".txt", dir)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: extract dataset")
	}

	f, err := os.Open(txtPath)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open dataset")
	}
	defer f.Close() //nolint:errcheck

	places, err := parsePlaces(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, eris.New("geocode: dataset contained no postal codes")
	}
	return places, nil
}

func parsePlaces(ctx context.Context, r io.Reader) ([]Place, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter:  '\t',
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var places []Place
	for row := range rowCh {
		if p, ok := placeFromRow(row); ok {
			places = append(places, p)
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "geocode: parse dataset")
	}
	return places, nil
}

func placeFromRow(row []string) (Place, bool) {
	if len(row) < minColumns || row[colPostalCode] == "" {
		return Place{}, false
	}
	p := Place{
		PostalCode: row[colPostalCode],
		PlaceName:  row[colPlaceName],
		StateName:  row[colStateName],
		StateCode:  row[colStateCode],
		CountyName: row[colCountyName],
	}
	if len(row) > colCountyCode {
		p.CountyCode = row[colCountyCode]
	}
	if len(row) > colLongitude {
		p.Latitude, _ = strconv.ParseFloat(row[colLatitude], 64)
		p.Longitude, _ = strconv.ParseFloat(row[colLongitude], 64)
	}
	return p, true
}
