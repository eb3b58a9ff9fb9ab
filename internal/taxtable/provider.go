// Package taxtable acquires the California sales tax rate table and answers
// rate lookups against it.
package taxtable

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/model"
)

// DefaultURL is the CDTFA page listing combined rates by city and county.
const DefaultURL = "https://www.cdtfa.ca.gov/taxes-and-fees/rates.aspx"

// ErrEmptyTaxTable means no rows could be loaded, so no lookups are possible.
var ErrEmptyTaxTable = eris.New("no tax data was extracted")

// Provider returns the rows of a rate table.
type Provider interface {
	// Name identifies the source; it is also the cache key.
	Name() string
	Fetch(ctx context.Context) ([]model.TaxTableRow, error)
}

// Columns maps row cells to fields. The CDTFA layout is city, rate, county.
type Columns struct {
	City   int `yaml:"city" mapstructure:"city"`
	Rate   int `yaml:"rate" mapstructure:"rate"`
	County int `yaml:"county" mapstructure:"county"`
}

// DefaultColumns returns the CDTFA column layout.
func DefaultColumns() Columns {
	return Columns{City: 0, Rate: 1, County: 2}
}

func (c Columns) width() int {
	return max(c.City, c.Rate, c.County) + 1
}

// rowFromCells builds a normalized row. ok is false when the cells are too
// few or the city or rate is blank.
func (c Columns) rowFromCells(cells []string) (model.TaxTableRow, bool) {
	if len(cells) < c.width() {
		return model.TaxTableRow{}, false
	}
	row := model.TaxTableRow{
		City:   model.NormalizeName(cells[c.City]),
		County: model.NormalizeName(cells[c.County]),
		Rate:   strings.Join(strings.Fields(cells[c.Rate]), ""),
	}
	if row.City == "" || row.Rate == "" {
		return model.TaxTableRow{}, false
	}
	return row, true
}

// Acquire loads a Table from p. Any fetch failure is logged and yields an
// empty table; callers must check Empty before matching.
func Acquire(ctx context.Context, p Provider) *Table {
	log := zap.L().With(zap.String("source", p.Name()))

	rows, err := p.Fetch(ctx)
	if err != nil {
		log.Error("tax table fetch failed", zap.Error(err))
		return NewTable(nil)
	}
	if len(rows) == 0 {
		log.Warn("tax table source returned no rows")
	} else {
		log.Info("tax table loaded", zap.Int("rows", len(rows)))
	}
	return NewTable(rows)
}
