package config

import (
	"errors"
	"testing"
	"time"
)

func TestGetDuration(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{value: "90", want: 90 * time.Minute},
		{value: "45s", want: 45 * time.Second},
		{value: " 2h ", want: 2 * time.Hour},
		{value: "soon", want: time.Hour},
		{value: "0", want: time.Hour},
		{value: "-5m", want: time.Hour},
	}
	for _, tc := range cases {
		t.Setenv("DECK_TEST_TTL", tc.value)
		if got := GetDuration("DECK_TEST_TTL", time.Hour, time.Minute); got != tc.want {
			t.Fatalf("GetDuration(%q) = %s, want %s", tc.value, got, tc.want)
		}
	}
	if got := GetDuration("DECK_TEST_UNSET_TTL", time.Hour, time.Minute); got != time.Hour {
		t.Fatalf("unset key should fall back, got %s", got)
	}
}

func TestLoadAPIConfigTokenTTLs(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("REFRESH_TOKEN_TTL_HOURS", "36h")
	cfg := LoadAPIConfig()
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 36*time.Hour {
		t.Fatalf("unexpected refresh ttl %s", cfg.RefreshTokenTTL)
	}
}

func TestValidateRequiresDerivablePublicHost(t *testing.T) {
	if err := (APIConfig{}).Validate(); !errors.Is(err, ErrPublicHostRequired) {
		t.Fatalf("expected ErrPublicHostRequired, got %v", err)
	}
	for _, host := range []string{"localhost", "www.rhlab.io", "apps.rhlab.io:5001", "myapps.rhlab.io"} {
		if err := (APIConfig{PublicHost: host}).Validate(); err == nil {
			t.Fatalf("expected %q to be rejected", host)
		}
	}
	if err := (APIConfig{PublicHost: "apps.rhlab.io"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (APIConfig{PublicHost: "deck.rhlab.io", HostnameMarker: "deck"}).Validate(); err != nil {
		t.Fatalf("custom marker should be honoured: %v", err)
	}
}

func TestPublicOrigin(t *testing.T) {
	if got := (APIConfig{PublicHost: "apps.rhlab.io"}).PublicOrigin(); got != "https://apps.rhlab.io" {
		t.Fatalf("unexpected origin %q", got)
	}
	if got := (APIConfig{PublicHost: "apps.rhlab.io", PublicURL: "http://localhost:5001/"}).PublicOrigin(); got != "http://localhost:5001" {
		t.Fatalf("PUBLIC_URL should win, got %q", got)
	}
}
