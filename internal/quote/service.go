// Package quote validates user input and runs a ZIP code through location
// resolution, rate matching and tax calculation.
package quote

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/internal/taxcalc"
	"github.com/sells-group/salestax-cli/internal/taxtable"
)

// Resolver turns a ZIP code into a location in the served state.
type Resolver interface {
	Resolve(ctx context.Context, zip string) (model.LocationRecord, error)
}

// Service answers location and quote queries against one loaded table.
type Service struct {
	resolver    Resolver
	table       *taxtable.Table
	calc        *taxcalc.Calculator
	suggestions int
}

// Option configures a Service.
type Option func(*Service)

// WithSuggestions sets how many look-alike cities a rate miss reports.
// Zero disables suggestions.
func WithSuggestions(n int) Option {
	return func(s *Service) {
		s.suggestions = n
	}
}

// NewService creates a Service.
func NewService(r Resolver, table *taxtable.Table, calc *taxcalc.Calculator, opts ...Option) *Service {
	s := &Service{resolver: r, table: table, calc: calc, suggestions: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the loaded rate table.
func (s *Service) Table() *taxtable.Table { return s.table }

// ValidateZip trims zip and checks it is exactly five ASCII digits.
func ValidateZip(zip string) (string, error) {
	z := strings.TrimSpace(zip)
	if len(z) != 5 {
		return "", eris.Wrapf(ErrInvalidZip, "%q", zip)
	}
	for i := 0; i < len(z); i++ {
		if z[i] < '0' || z[i] > '9' {
			return "", eris.Wrapf(ErrInvalidZip, "%q", zip)
		}
	}
	return z, nil
}

// ParsePayment parses a positive decimal amount within taxcalc's bounds.
func ParsePayment(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, eris.Wrapf(ErrInvalidPayment, "%q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, eris.Wrapf(ErrInvalidPayment, "%q is not positive", s)
	}
	if !taxcalc.InRange(d) {
		return decimal.Zero, eris.Wrapf(ErrInvalidPayment, "%q out of range", s)
	}
	return d, nil
}

// Resolve validates zip and returns its location in the served state.
// Out-of-domain records are returned alongside their error.
func (s *Service) Resolve(ctx context.Context, zip string) (model.LocationRecord, error) {
	z, err := ValidateZip(zip)
	if err != nil {
		return model.LocationRecord{}, err
	}
	return s.resolver.Resolve(ctx, z)
}

// Match finds the rate for a resolved location and decomposes it.
func (s *Service) Match(loc model.LocationRecord) (model.Match, error) {
	if s.table.Empty() {
		return model.Match{}, taxtable.ErrEmptyTaxTable
	}
	rate, ok := s.table.FindRate(loc.City, loc.County)
	if !ok {
		return model.Match{}, &NoMatchError{
			City:        loc.City,
			County:      loc.County,
			Suggestions: s.table.Suggest(loc.City, loc.County, s.suggestions),
		}
	}
	spec, err := s.calc.Decompose(rate)
	if err != nil {
		return model.Match{}, eris.Wrapf(err, "quote: decompose rate for %s, %s", loc.City, loc.County)
	}
	return model.Match{Location: loc, Spec: spec}, nil
}

// Locate resolves zip and matches its rate.
func (s *Service) Locate(ctx context.Context, zip string) (model.Match, error) {
	loc, err := s.Resolve(ctx, zip)
	if err != nil {
		return model.Match{Location: loc}, err
	}
	return s.Match(loc)
}

// Price computes tax and remittance for a matched location.
func (s *Service) Price(m model.Match, payment decimal.Decimal) (model.Quote, error) {
	if !payment.IsPositive() || !taxcalc.InRange(payment) {
		return model.Quote{}, eris.Wrapf(ErrInvalidPayment, "%s is not a positive amount in range", payment)
	}
	return s.calc.Quote(m, payment), nil
}

// Quote is Locate followed by Price on a payment string.
func (s *Service) Quote(ctx context.Context, zip, payment string) (model.Quote, error) {
	p, err := ParsePayment(payment)
	if err != nil {
		return model.Quote{}, err
	}
	m, err := s.Locate(ctx, zip)
	if err != nil {
		return model.Quote{}, err
	}
	return s.Price(m, p)
}
