// Package report renders quotes, matches and rate listings.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/salestax-cli/internal/model"
)

// Format selects a rendering.
type Format string

// Supported formats.
const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name. Blank means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// Money formats an amount as dollars with two decimals, rounding half away from zero.
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Percent formats a fraction as a percentage with two decimals.
func Percent(f decimal.Decimal) string {
	return f.Shift(2).StringFixed(2) + "%"
}

// QuoteView is the presentation form of a quote. Amounts are rounded here
// and nowhere else.
type QuoteView struct {
	ZIP        string  `json:"zip" yaml:"zip"`
	Payment    string  `json:"payment" yaml:"payment"`
	City       string  `json:"city" yaml:"city"`
	County     string  `json:"county" yaml:"county"`
	State      string  `json:"state" yaml:"state"`
	TotalRate  string  `json:"total_rate" yaml:"total_rate"`
	StateRate  string  `json:"state_rate" yaml:"state_rate"`
	CountyRate *string `json:"county_rate" yaml:"county_rate"`
	CityRate   *string `json:"city_rate" yaml:"city_rate"`
	TotalTax   string  `json:"total_tax" yaml:"total_tax"`
	Remittance struct {
		State  string  `json:"state" yaml:"state"`
		County string  `json:"county" yaml:"county"`
		City   *string `json:"city,omitempty" yaml:"city,omitempty"`
	} `json:"remittance" yaml:"remittance"`
}

// NewQuoteView builds the presentation form of q.
func NewQuoteView(q model.Quote) QuoteView {
	loc, spec := q.Match.Location, q.Match.Spec
	v := QuoteView{
		ZIP:       loc.PostalCode,
		Payment:   Money(q.Payment),
		City:      loc.City,
		County:    loc.County,
		State:     loc.State,
		TotalRate: spec.Rate,
		StateRate: Percent(spec.State),
		TotalTax:  Money(q.TotalTax),
	}
	if spec.County.IsPositive() {
		s := Percent(spec.County)
		v.CountyRate = &s
	}
	if spec.HasCity() {
		s := Percent(spec.City)
		v.CityRate = &s
	}
	v.Remittance.State = Money(q.Remittance.State)
	v.Remittance.County = Money(q.Remittance.County)
	if q.Remittance.City != nil {
		s := Money(*q.Remittance.City)
		v.Remittance.City = &s
	}
	return v
}

func orNone(s *string) string {
	if s == nil {
		return "None"
	}
	return *s
}

// Lines returns the text report, one field per line, in fixed order.
func (v QuoteView) Lines() []string {
	lines := []string{
		"Location ZIP: " + v.ZIP,
		"Payment amount: " + v.Payment,
		"City: " + v.City,
		"County: " + v.County,
		"State: " + v.State,
		"Total tax rate: " + v.TotalRate,
		"State tax rate: " + v.StateRate,
		"City tax rate: " + orNone(v.CityRate),
		"County tax rate: " + orNone(v.CountyRate),
		"Total tax to be paid: " + v.TotalTax,
		"Remittance amount to state: " + v.Remittance.State,
	}
	if v.Remittance.City != nil {
		lines = append(lines, "Remittance amount to city: "+*v.Remittance.City)
	}
	return append(lines, "Remittance amount to county: "+v.Remittance.County)
}

// Text returns the plain text report.
func Text(q model.Quote) string {
	return strings.Join(NewQuoteView(q).Lines(), "\n")
}

// WriteQuote renders q to w.
func WriteQuote(w io.Writer, q model.Quote, f Format) error {
	v := NewQuoteView(q)
	switch f {
	case FormatText, "":
		_, err := fmt.Fprintln(w, Text(q))
		return err
	case FormatTable:
		t := newTable(w)
		t.AppendHeader(table.Row{"Field", "Value"})
		for _, line := range v.Lines() {
			k, val, _ := strings.Cut(line, ": ")
			t.AppendRow(table.Row{k, val})
		}
		t.Render()
		return nil
	default:
		return encode(w, v, f)
	}
}

// MatchView is the presentation form of a located ZIP code.
type MatchView struct {
	ZIP        string  `json:"zip" yaml:"zip"`
	City       string  `json:"city" yaml:"city"`
	County     string  `json:"county" yaml:"county"`
	State      string  `json:"state" yaml:"state"`
	TotalRate  string  `json:"total_rate" yaml:"total_rate"`
	StateRate  string  `json:"state_rate" yaml:"state_rate"`
	CountyRate *string `json:"county_rate" yaml:"county_rate"`
	CityRate   *string `json:"city_rate" yaml:"city_rate"`
}

// NewMatchView builds the presentation form of m.
func NewMatchView(m model.Match) MatchView {
	v := MatchView{
		ZIP:       m.Location.PostalCode,
		City:      m.Location.City,
		County:    m.Location.County,
		State:     m.Location.State,
		TotalRate: m.Spec.Rate,
		StateRate: Percent(m.Spec.State),
	}
	if m.Spec.County.IsPositive() {
		s := Percent(m.Spec.County)
		v.CountyRate = &s
	}
	if m.Spec.HasCity() {
		s := Percent(m.Spec.City)
		v.CityRate = &s
	}
	return v
}

// WriteMatch renders m to w.
func WriteMatch(w io.Writer, m model.Match, f Format) error {
	v := NewMatchView(m)
	switch f {
	case FormatText, "", FormatTable:
		rows := [][2]string{
			{"Location ZIP", v.ZIP},
			{"City", v.City},
			{"County", v.County},
			{"State", v.State},
			{"Total tax rate", v.TotalRate},
			{"State tax rate", v.StateRate},
			{"City tax rate", orNone(v.CityRate)},
			{"County tax rate", orNone(v.CountyRate)},
		}
		if f == FormatTable {
			t := newTable(w)
			t.AppendHeader(table.Row{"Field", "Value"})
			for _, r := range rows {
				t.AppendRow(table.Row{r[0], r[1]})
			}
			t.Render()
			return nil
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "%s: %s\n", r[0], r[1]); err != nil {
				return err
			}
		}
		return nil
	default:
		return encode(w, v, f)
	}
}

// WriteRates renders rate table rows. Text and table both use a table layout.
func WriteRates(w io.Writer, rows []model.TaxTableRow, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		if rows == nil {
			rows = []model.TaxTableRow{}
		}
		return encode(w, rows, f)
	default:
		t := newTable(w)
		t.AppendHeader(table.Row{"City", "County", "Rate"})
		for _, r := range rows {
			t.AppendRow(table.Row{r.City, r.County, r.Rate})
		}
		t.AppendFooter(table.Row{"", "Rows", len(rows)})
		t.Render()
		return nil
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "report: encode json")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	default:
		return eris.Errorf("report: unknown format %q", f)
	}
}
