// Package model defines the domain types shared across the sales tax pipeline.
package model

import "github.com/shopspring/decimal"

// TaxTableRow is one scraped rate table entry. City and County are upper-cased.
type TaxTableRow struct {
	City   string `json:"city" yaml:"city"`
	County string `json:"county" yaml:"county"`
	Rate   string `json:"rate" yaml:"rate"` // e.g. "7.75%"
}

// LocationRecord is the normalized geocoder result for a ZIP code.
// An empty field means the geocoder had no data for it.
type LocationRecord struct {
	PostalCode string `json:"postal_code" yaml:"postal_code"`
	City       string `json:"city" yaml:"city"`
	County     string `json:"county" yaml:"county"`
	State      string `json:"state" yaml:"state"`
}

// TaxRateSpec is a rate decomposed into jurisdiction fractions.
type TaxRateSpec struct {
	Rate   string          `json:"rate" yaml:"rate"`
	Total  decimal.Decimal `json:"total" yaml:"total"`
	State  decimal.Decimal `json:"state" yaml:"state"`
	County decimal.Decimal `json:"county" yaml:"county"`
	City   decimal.Decimal `json:"city" yaml:"city"`
}

// HasCity reports whether any portion of the rate is attributed to the city.
func (s TaxRateSpec) HasCity() bool {
	return s.City.IsPositive()
}

// RemittanceBreakdown holds the money owed to each jurisdiction.
// City is nil when no city share applies.
type RemittanceBreakdown struct {
	State  decimal.Decimal  `json:"state" yaml:"state"`
	County decimal.Decimal  `json:"county" yaml:"county"`
	City   *decimal.Decimal `json:"city,omitempty" yaml:"city,omitempty"`
}

// Sum returns the total of all present components.
func (r RemittanceBreakdown) Sum() decimal.Decimal {
	sum := r.State.Add(r.County)
	if r.City != nil {
		sum = sum.Add(*r.City)
	}
	return sum
}

// Match is a ZIP code that resolved to a location with a known rate.
type Match struct {
	Location LocationRecord `json:"location" yaml:"location"`
	Spec     TaxRateSpec    `json:"spec" yaml:"spec"`
}

// Quote is a Match priced against a payment amount.
type Quote struct {
	Match      Match               `json:"match" yaml:"match"`
	Payment    decimal.Decimal     `json:"payment" yaml:"payment"`
	TotalTax   decimal.Decimal     `json:"total_tax" yaml:"total_tax"`
	Remittance RemittanceBreakdown `json:"remittance" yaml:"remittance"`
}
