package domain

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAgeOn(t *testing.T) {
	tests := []struct {
		name  string
		visit string
		birth string
		want  int
	}{
		{"birthday already passed", "2024-06-15", "1990-03-01", 34},
		{"birthday today", "2024-06-15", "2014-06-15", 10},
		{"day before birthday", "2024-06-14", "2014-06-15", 9},
		{"newborn", "2024-06-15", "2024-06-01", 0},
		{"leap day birth", "2025-02-28", "2004-02-29", 20},
		{"birth after visit", "2024-06-15", "2030-06-15", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AgeOn(day(tt.visit), day(tt.birth)); got != tt.want {
				t.Fatalf("AgeOn(%s, %s) = %d, want %d", tt.visit, tt.birth, got, tt.want)
			}
		})
	}
}

func TestDate_KeepsCalendarDayOfLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata not available")
	}
	late := time.Date(2024, 6, 15, 23, 30, 0, 0, paris)
	if got := Date(late); !got.Equal(day("2024-06-15")) {
		t.Fatalf("expected 2024-06-15, got %s", got)
	}
}

func TestConfirmationCodeFor(t *testing.T) {
	created := time.Date(2016, 9, 12, 10, 0, 0, 0, time.UTC)
	if got := ConfirmationCodeFor(created, 15); got != "160912_15" {
		t.Fatalf("unexpected confirmation code %q", got)
	}
}

func TestParseVisitDuration(t *testing.T) {
	if d, ok := ParseVisitDuration("half"); !ok || d != DurationHalf {
		t.Fatalf("expected half, got %q %v", d, ok)
	}
	if _, ok := ParseVisitDuration("evening"); ok {
		t.Fatal("expected unknown duration to be rejected")
	}
}
