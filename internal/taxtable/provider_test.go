package taxtable

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/salestax-cli/internal/fetcher"
)

const ratesPage = `<html><body>
<table>
  <tr><th>Location</th><th>Rate</th><th>County</th></tr>
  <tr><td>San Diego</td><td>7.75%</td><td>San Diego</td></tr>
  <tr><td> los   angeles </td><td> 9.50% </td><td>Los Angeles</td></tr>
  <tr><td>Short</td><td>8%</td></tr>
  <tr><td></td><td>8%</td><td>Kern</td></tr>
  <tr><td>Albany</td><td></td><td>Alameda</td></tr>
</table>
<table>
  <tr><td>Alameda</td><td>10.75%</td><td>Alameda</td><td>extra</td></tr>
</table>
</body></html>`

func TestHTMLProvider_Fetch(t *testing.T) {
	p := NewHTMLProvider(&fakeFetcher{body: ratesPage}, "")
	assert.Equal(t, "html:"+DefaultURL, p.Name())

	rows, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "SAN DIEGO", rows[0].City)
	assert.Equal(t, "SAN DIEGO", rows[0].County)
	assert.Equal(t, "7.75%", rows[0].Rate)

	assert.Equal(t, "LOS ANGELES", rows[1].City)
	assert.Equal(t, "9.50%", rows[1].Rate)

	assert.Equal(t, "ALAMEDA", rows[2].City)
}

func TestHTMLProvider_NoTables(t *testing.T) {
	p := NewHTMLProvider(&fakeFetcher{body: "<html><body><p>maintenance</p></body></html>"}, "https://example.test/rates")
	rows, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHTMLProvider_DownloadError(t *testing.T) {
	p := NewHTMLProvider(&fakeFetcher{err: errUpstream}, "")
	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
}

func TestHTMLProvider_CustomColumns(t *testing.T) {
	page := `<table><tr><td>San Diego</td><td>San Diego</td><td>7.75%</td></tr></table>`
	p := NewHTMLProvider(&fakeFetcher{body: page}, "", WithHTMLColumns(Columns{City: 0, County: 1, Rate: 2}))
	rows, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7.75%", rows[0].Rate)
}

func writeRatesWorkbook(t *testing.T) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Rates")
	require.NoError(t, err)
	for _, r := range [][]string{
		{"Location", "Rate", "County"},
		{"Alameda", "10.75%", "Alameda"},
		{"Albany", "10.75%", "Alameda"},
		{"", "", ""},
	} {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "source.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestXLSXProvider_Fetch(t *testing.T) {
	ff := &fakeFetcher{file: writeRatesWorkbook(t)}
	p := NewXLSXProvider(ff, "https://example.test/rates.xlsx", WithXLSXTempDir(t.TempDir()))
	assert.Equal(t, "xlsx:https://example.test/rates.xlsx", p.Name())

	rows, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ALAMEDA", rows[0].City)
	assert.Equal(t, "ALBANY", rows[1].City)
	assert.Equal(t, "ALAMEDA", rows[1].County)
}

func TestXLSXProvider_Errors(t *testing.T) {
	_, err := NewXLSXProvider(&fakeFetcher{}, "").Fetch(context.Background())
	assert.Error(t, err)

	_, err = NewXLSXProvider(&fakeFetcher{err: errUpstream}, "https://example.test/x.xlsx").Fetch(context.Background())
	assert.ErrorIs(t, err, errUpstream)

	p := NewXLSXProvider(&fakeFetcher{file: writeRatesWorkbook(t)}, "https://example.test/x.xlsx",
		WithXLSXSheet(fetcher.XLSXOptions{SheetName: "Missing"}))
	_, err = p.Fetch(context.Background())
	assert.Error(t, err)
}

func TestAcquire(t *testing.T) {
	tbl := Acquire(context.Background(), &stubProvider{name: "stub", rows: sampleRows()})
	assert.Equal(t, 6, tbl.Len())
}

func TestAcquire_FailureYieldsEmptyTable(t *testing.T) {
	tbl := Acquire(context.Background(), &stubProvider{name: "stub", err: errUpstream})
	require.NotNil(t, tbl)
	assert.True(t, tbl.Empty())

	tbl = Acquire(context.Background(), &stubProvider{name: "stub"})
	assert.True(t, tbl.Empty())
}
