package taxtable

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/sells-group/salestax-cli/internal/model"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a suggestion.
const suggestThreshold = 0.8

type rowKey struct {
	city   string
	county string
}

// Table is an immutable, ordered rate table.
type Table struct {
	rows  []model.TaxTableRow
	index map[rowKey]int
}

// NewTable builds a Table from rows. Rows are copied; the first row for a
// given city and county wins on lookup.
func NewTable(rows []model.TaxTableRow) *Table {
	t := &Table{
		rows:  make([]model.TaxTableRow, len(rows)),
		index: make(map[rowKey]int, len(rows)),
	}
	copy(t.rows, rows)
	for i, r := range t.rows {
		k := rowKey{city: r.City, county: r.County}
		if _, ok := t.index[k]; !ok {
			t.index[k] = i
		}
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Rows returns a copy of all rows in source order.
func (t *Table) Rows() []model.TaxTableRow {
	if t == nil {
		return nil
	}
	out := make([]model.TaxTableRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// FindRate returns the rate of the first row whose city and county both equal
// the normalized inputs. A miss is a normal outcome.
func (t *Table) FindRate(city, county string) (string, bool) {
	if t == nil {
		return "", false
	}
	i, ok := t.index[rowKey{city: model.NormalizeName(city), county: model.NormalizeName(county)}]
	if !ok {
		return "", false
	}
	return t.rows[i].Rate, true
}

// Filter returns rows whose city and county contain the given substrings.
// Empty arguments match everything.
func (t *Table) Filter(city, county string) []model.TaxTableRow {
	if t == nil {
		return nil
	}
	city = model.NormalizeName(city)
	county = model.NormalizeName(county)

	var out []model.TaxTableRow
	for _, r := range t.rows {
		if city != "" && !strings.Contains(r.City, city) {
			continue
		}
		if county != "" && !strings.Contains(r.County, county) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Suggest returns up to n table city names that look like city, preferring
// rows in the same county. It never affects FindRate.
func (t *Table) Suggest(city, county string, n int) []string {
	if t == nil || n <= 0 {
		return nil
	}
	city = model.NormalizeName(city)
	county = model.NormalizeName(county)
	if city == "" {
		return nil
	}

	candidates := t.rows
	var sameCounty []model.TaxTableRow
	for _, r := range t.rows {
		if r.County == county {
			sameCounty = append(sameCounty, r)
		}
	}
	if len(sameCounty) > 0 {
		candidates = sameCounty
	}

	type scored struct {
		name  string
		score float64
	}
	seen := make(map[string]bool)
	var ranked []scored
	for _, r := range candidates {
		if seen[r.City] {
			continue
		}
		seen[r.City] = true
		s := matchr.JaroWinkler(city, r.City, false)
		if s >= suggestThreshold {
			ranked = append(ranked, scored{name: r.City, score: s})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}
