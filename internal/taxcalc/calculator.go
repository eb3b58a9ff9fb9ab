// Package taxcalc converts rate strings into jurisdiction fractions and
// computes tax and remittance amounts with exact decimal arithmetic.
package taxcalc

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/salestax-cli/internal/model"
)

// ErrInvalidRate is returned when a rate string is not a percentage.
var ErrInvalidRate = eris.New("invalid rate format")

// Parsed amounts and rates must stay within these bounds. Rounding a decimal
// with a huge exponent allocates a power of ten of that size.
const (
	MaxExponent = 12
	MaxDigits   = 24
)

// InRange reports whether d has a bounded exponent and digit count.
func InRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -MaxExponent && exp <= MaxExponent && d.NumDigits() <= MaxDigits
}

// Default policy constants.
var (
	DefaultStateRate   = decimal.RequireFromString("0.0725")
	DefaultCountyShare = decimal.RequireFromString("0.5")
)

// Policy holds the fixed rates used to split a combined rate.
//
// The state takes up to StateRate of the combined rate. Whatever remains is
// the local rate; CountyShare of it goes to the county and the rest to the city.
type Policy struct {
	StateRate   decimal.Decimal
	CountyShare decimal.Decimal
}

// DefaultPolicy returns the California policy: 7.25% state, local rate split evenly.
func DefaultPolicy() Policy {
	return Policy{
		StateRate:   DefaultStateRate,
		CountyShare: DefaultCountyShare,
	}
}

// NewPolicy parses a policy from its string form.
func NewPolicy(stateRate, countyShare string) (Policy, error) {
	sr, err := decimal.NewFromString(strings.TrimSpace(stateRate))
	if err != nil {
		return Policy{}, eris.Wrapf(err, "taxcalc: parse state rate %q", stateRate)
	}
	cs, err := decimal.NewFromString(strings.TrimSpace(countyShare))
	if err != nil {
		return Policy{}, eris.Wrapf(err, "taxcalc: parse county share %q", countyShare)
	}
	p := Policy{StateRate: sr, CountyShare: cs}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that both fractions are within [0, 1].
func (p Policy) Validate() error {
	if p.StateRate.IsNegative() || p.StateRate.GreaterThan(decimal.NewFromInt(1)) {
		return eris.Errorf("taxcalc: state rate %s out of range [0, 1]", p.StateRate)
	}
	if p.CountyShare.IsNegative() || p.CountyShare.GreaterThan(decimal.NewFromInt(1)) {
		return eris.Errorf("taxcalc: county share %s out of range [0, 1]", p.CountyShare)
	}
	return nil
}

// Calculator applies a Policy to rates and payments.
type Calculator struct {
	policy Policy
}

// NewCalculator creates a Calculator with the given policy.
func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

// Policy returns the active policy.
func (c *Calculator) Policy() Policy {
	return c.policy
}

// ParsePercent converts "7.75%" into 0.0775. The percent sign is optional.
func ParsePercent(rate string) (decimal.Decimal, error) {
	s := strings.TrimSpace(rate)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.Zero, eris.Wrapf(ErrInvalidRate, "empty rate %q", rate)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(ErrInvalidRate, "parse %q", rate)
	}
	if !InRange(d) {
		return decimal.Zero, eris.Wrapf(ErrInvalidRate, "rate %q out of range", rate)
	}
	if d.IsNegative() {
		return decimal.Zero, eris.Wrapf(ErrInvalidRate, "negative rate %q", rate)
	}
	return d.Shift(-2), nil
}

// Decompose parses a rate string and splits it into state, county and city fractions.
// The three fractions always sum to the total.
func (c *Calculator) Decompose(rate string) (model.TaxRateSpec, error) {
	total, err := ParsePercent(rate)
	if err != nil {
		return model.TaxRateSpec{}, err
	}

	state := decimal.Min(total, c.policy.StateRate)
	local := total.Sub(state)
	county := local.Mul(c.policy.CountyShare)
	city := local.Sub(county)

	return model.TaxRateSpec{
		Rate:   strings.TrimSpace(rate),
		Total:  total,
		State:  state,
		County: county,
		City:   city,
	}, nil
}

// TotalTax returns payment * total rate.
func (c *Calculator) TotalTax(payment decimal.Decimal, spec model.TaxRateSpec) decimal.Decimal {
	return payment.Mul(spec.Total)
}

// Remit returns the amount owed to each jurisdiction for the payment.
func (c *Calculator) Remit(payment decimal.Decimal, spec model.TaxRateSpec) model.RemittanceBreakdown {
	r := model.RemittanceBreakdown{
		State:  payment.Mul(spec.State),
		County: payment.Mul(spec.County),
	}
	if spec.HasCity() {
		city := payment.Mul(spec.City)
		r.City = &city
	}
	return r
}

// Quote prices a match against a payment.
func (c *Calculator) Quote(m model.Match, payment decimal.Decimal) model.Quote {
	return model.Quote{
		Match:      m,
		Payment:    payment,
		TotalTax:   c.TotalTax(payment, m.Spec),
		Remittance: c.Remit(payment, m.Spec),
	}
}
