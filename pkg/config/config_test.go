package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Reservation.DailyCapacity != 1000 {
		t.Fatalf("expected daily capacity 1000, got %d", cfg.Reservation.DailyCapacity)
	}
	if cfg.Reservation.CutoffHour != 14 {
		t.Fatalf("expected cutoff hour 14, got %d", cfg.Reservation.CutoffHour)
	}
	if cfg.Auth.SessionTTL != 0 {
		t.Fatalf("expected sessions without expiry by default, got %s", cfg.Auth.SessionTTL)
	}
	if !cfg.Tariffs.Standard.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("unexpected standard tariff %s", cfg.Tariffs.Standard)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DAILY_CAPACITY", "2")
	t.Setenv("CUTOFF_HOUR", "12")
	t.Setenv("TARIFF_CHILD", "7.5")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("SMTP_USE_TLS", "true")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.168.1.1 ")

	cfg := Load()

	if cfg.Reservation.DailyCapacity != 2 || cfg.Reservation.CutoffHour != 12 {
		t.Fatalf("reservation overrides not applied: %+v", cfg.Reservation)
	}
	if !cfg.Tariffs.Child.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("expected child tariff 7.5, got %s", cfg.Tariffs.Child)
	}
	if cfg.Auth.SessionTTL != 90*time.Minute {
		t.Fatalf("expected 90m session ttl, got %s", cfg.Auth.SessionTTL)
	}
	if !cfg.Email.SMTPUseTLS {
		t.Fatal("expected SMTP TLS enabled")
	}
	if got := cfg.Server.TrustedProxies; len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.168.1.1" {
		t.Fatalf("unexpected trusted proxies %q", got)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DAILY_CAPACITY", "lots")
	t.Setenv("TARIFF_SENIOR", "twelve")

	cfg := Load()

	if cfg.Reservation.DailyCapacity != 1000 {
		t.Fatalf("expected fallback capacity, got %d", cfg.Reservation.DailyCapacity)
	}
	if !cfg.Tariffs.Senior.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected fallback senior tariff, got %s", cfg.Tariffs.Senior)
	}
}

func TestReservationConfig_Location(t *testing.T) {
	if loc := (ReservationConfig{Timezone: "Not/AZone"}).Location(); loc != time.Local {
		t.Fatalf("expected fallback to time.Local, got %v", loc)
	}
	if loc := (ReservationConfig{Timezone: "UTC"}).Location(); loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %v", loc)
	}
}
