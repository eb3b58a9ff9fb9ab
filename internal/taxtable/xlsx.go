package taxtable

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salestax-cli/internal/fetcher"
	"github.com/sells-group/salestax-cli/internal/model"
)

// XLSXProvider reads rate rows from a downloadable workbook.
type XLSXProvider struct {
	fetcher fetcher.Fetcher
	url     string
	columns Columns
	sheet   fetcher.XLSXOptions
	tempDir string
}

// XLSXOption configures an XLSXProvider.
type XLSXOption func(*XLSXProvider)

// WithXLSXColumns overrides the cell layout.
func WithXLSXColumns(c Columns) XLSXOption {
	return func(p *XLSXProvider) {
		p.columns = c
	}
}

// WithXLSXSheet selects the sheet and header rows to skip.
func WithXLSXSheet(opts fetcher.XLSXOptions) XLSXOption {
	return func(p *XLSXProvider) {
		p.sheet = opts
	}
}

// WithXLSXTempDir sets where the workbook is downloaded.
func WithXLSXTempDir(dir string) XLSXOption {
	return func(p *XLSXProvider) {
		p.tempDir = dir
	}
}

// NewXLSXProvider creates a provider for the workbook at url.
func NewXLSXProvider(f fetcher.Fetcher, url string, opts ...XLSXOption) *XLSXProvider {
	p := &XLSXProvider{
		fetcher: f,
		url:     url,
		columns: DefaultColumns(),
		sheet:   fetcher.XLSXOptions{SkipRows: 1},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *XLSXProvider) Name() string { return "xlsx:" + p.url }

// Fetch implements Provider.
func (p *XLSXProvider) Fetch(ctx context.Context) ([]model.TaxTableRow, error) {
	if p.url == "" {
		return nil, eris.New("taxtable: xlsx url not configured")
	}

	dir, err := os.MkdirTemp(p.tempDir, "salestax-rates-")
	if err != nil {
		return nil, eris.Wrap(err, "taxtable: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, "rates.xlsx")
	if _, err := p.fetcher.DownloadToFile(ctx, p.url, path); err != nil {
		return nil, eris.Wrap(err, "taxtable: download workbook")
	}

	cells, err := fetcher.ReadXLSX(path, p.sheet)
	if err != nil {
		return nil, eris.Wrap(err, "taxtable: read workbook")
	}

	var rows []model.TaxTableRow
	for _, c := range cells {
		if row, ok := p.columns.rowFromCells(c); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
