// Package pricing maps a visitor's age, visit duration and reduced-fare
// eligibility to a ticket price.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/pkg/config"
)

// Age boundaries of the tariff tiers, lower bound inclusive.
const (
	ChildFromAge    = 4
	StandardFromAge = 12
	SeniorFromAge   = 60
)

type Rates struct {
	Free     decimal.Decimal
	Child    decimal.Decimal
	Standard decimal.Decimal
	Reduced  decimal.Decimal
	Senior   decimal.Decimal
}

func RatesFromConfig(c config.TariffConfig) Rates {
	return Rates{
		Free:     c.Free,
		Child:    c.Child,
		Standard: c.Standard,
		Reduced:  c.Reduced,
		Senior:   c.Senior,
	}
}

type Policy struct {
	rates Rates
}

func NewPolicy(rates Rates) *Policy {
	return &Policy{rates: rates}
}

var two = decimal.NewFromInt(2)

// Price returns the ticket price. The free tier ignores the duration; every
// other tier charges half its base rate for a half-day visit.
func (p *Policy) Price(age int, duration domain.VisitDuration, discountEligible bool) decimal.Decimal {
	if age < ChildFromAge {
		return p.rates.Free
	}

	var base decimal.Decimal
	switch {
	case age < StandardFromAge:
		base = p.rates.Child
	case age < SeniorFromAge && discountEligible:
		base = p.rates.Reduced
	case age < SeniorFromAge:
		base = p.rates.Standard
	default:
		base = p.rates.Senior
	}

	if duration == domain.DurationFull {
		return base
	}
	return base.Div(two)
}
