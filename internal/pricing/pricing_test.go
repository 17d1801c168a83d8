package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/domain"
)

func testRates() Rates {
	return Rates{
		Free:     decimal.Zero,
		Child:    decimal.NewFromInt(8),
		Standard: decimal.NewFromInt(16),
		Reduced:  decimal.NewFromInt(10),
		Senior:   decimal.RequireFromString("12.5"),
	}
}

func TestPrice_Tiers(t *testing.T) {
	p := NewPolicy(testRates())

	tests := []struct {
		name     string
		age      int
		duration domain.VisitDuration
		discount bool
		want     string
	}{
		{"toddler full day", 3, domain.DurationFull, false, "0"},
		{"toddler half day", 0, domain.DurationHalf, true, "0"},
		{"first child year", 4, domain.DurationFull, false, "8"},
		{"last child year", 11, domain.DurationFull, true, "8"},
		{"child half day", 5, domain.DurationHalf, false, "4"},
		{"standard boundary", 12, domain.DurationFull, false, "16"},
		{"standard half day", 30, domain.DurationHalf, false, "8"},
		{"reduced", 30, domain.DurationFull, true, "10"},
		{"reduced half day", 59, domain.DurationHalf, true, "5"},
		{"senior boundary", 60, domain.DurationFull, false, "12.5"},
		{"senior ignores discount", 65, domain.DurationFull, true, "12.5"},
		{"senior half day", 90, domain.DurationHalf, false, "6.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Price(tt.age, tt.duration, tt.discount)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Price(%d, %s, %v) = %s, want %s", tt.age, tt.duration, tt.discount, got, tt.want)
			}
		})
	}
}

func TestPrice_DefinedAndNonNegativeForAllAges(t *testing.T) {
	p := NewPolicy(testRates())
	for age := 0; age < 150; age++ {
		for _, d := range []domain.VisitDuration{domain.DurationHalf, domain.DurationFull} {
			for _, discount := range []bool{false, true} {
				if price := p.Price(age, d, discount); price.IsNegative() {
					t.Fatalf("negative price %s for age %d", price, age)
				}
			}
		}
	}
}

func TestPrice_HalfDayIsHalfOfFullDay(t *testing.T) {
	rateSets := []Rates{
		testRates(),
		{
			Free:     decimal.Zero,
			Child:    decimal.RequireFromString("7.99"),
			Standard: decimal.RequireFromString("17"),
			Reduced:  decimal.RequireFromString("9.5"),
			Senior:   decimal.RequireFromString("11.01"),
		},
	}

	for _, rates := range rateSets {
		p := NewPolicy(rates)
		for age := ChildFromAge; age < 150; age++ {
			for _, discount := range []bool{false, true} {
				full := p.Price(age, domain.DurationFull, discount)
				half := p.Price(age, domain.DurationHalf, discount)
				if !half.Mul(two).Equal(full) {
					t.Fatalf("age %d discount %v: half %s is not half of full %s", age, discount, half, full)
				}
			}
		}
	}
}

func TestPrice_FreeTierIsDurationIndependent(t *testing.T) {
	rates := testRates()
	rates.Free = decimal.NewFromInt(2)
	p := NewPolicy(rates)

	for age := 0; age < ChildFromAge; age++ {
		if !p.Price(age, domain.DurationHalf, false).Equal(p.Price(age, domain.DurationFull, false)) {
			t.Fatalf("free tier price depends on duration at age %d", age)
		}
	}
}
