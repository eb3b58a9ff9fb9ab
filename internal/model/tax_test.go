package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRemittanceBreakdown_Sum(t *testing.T) {
	city := decimal.RequireFromString("2.50")
	r := RemittanceBreakdown{
		State:  decimal.RequireFromString("72.50"),
		County: decimal.RequireFromString("2.50"),
		City:   &city,
	}
	assert.True(t, r.Sum().Equal(decimal.RequireFromString("77.50")))
}

func TestRemittanceBreakdown_SumWithoutCity(t *testing.T) {
	r := RemittanceBreakdown{
		State:  decimal.RequireFromString("72.50"),
		County: decimal.Zero,
	}
	assert.True(t, r.Sum().Equal(decimal.RequireFromString("72.50")))
}

func TestTaxRateSpec_HasCity(t *testing.T) {
	assert.False(t, TaxRateSpec{City: decimal.Zero}.HasCity())
	assert.True(t, TaxRateSpec{City: decimal.RequireFromString("0.0025")}.HasCity())
}
