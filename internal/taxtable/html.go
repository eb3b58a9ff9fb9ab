package taxtable

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/salestax-cli/internal/fetcher"
	"github.com/sells-group/salestax-cli/internal/model"
)

// HTMLProvider scrapes rate rows from every table on an HTML page.
type HTMLProvider struct {
	fetcher fetcher.Fetcher
	url     string
	columns Columns
}

// HTMLOption configures an HTMLProvider.
type HTMLOption func(*HTMLProvider)

// WithHTMLColumns overrides the cell layout.
func WithHTMLColumns(c Columns) HTMLOption {
	return func(p *HTMLProvider) {
		p.columns = c
	}
}

// NewHTMLProvider creates a provider for the page at url.
func NewHTMLProvider(f fetcher.Fetcher, url string, opts ...HTMLOption) *HTMLProvider {
	if url == "" {
		url = DefaultURL
	}
	p := &HTMLProvider{fetcher: f, url: url, columns: DefaultColumns()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *HTMLProvider) Name() string { return "html:" + p.url }

// Fetch implements Provider. A page without usable rows returns no rows and no error.
func (p *HTMLProvider) Fetch(ctx context.Context) ([]model.TaxTableRow, error) {
	body, err := p.fetcher.Download(ctx, p.url)
	if err != nil {
		return nil, eris.Wrap(err, "taxtable: download page")
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrap(err, "taxtable: parse page")
	}
	return p.parse(doc), nil
}

func (p *HTMLProvider) parse(doc *goquery.Document) []model.TaxTableRow {
	var rows []model.TaxTableRow
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		cells := make([]string, tds.Length())
		tds.Each(func(i int, td *goquery.Selection) {
			cells[i] = td.Text()
		})
		if row, ok := p.columns.rowFromCells(cells); ok {
			rows = append(rows, row)
		}
	})
	return rows
}
