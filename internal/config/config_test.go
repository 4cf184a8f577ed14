package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "COMPANY",
		"DEFAULT_WAREHOUSE", "PRICE_LIST", "AVAILABILITY_TTL_SECONDS",
		"AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES", "MANAGER_PIN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if cfg.DefaultWarehouse != "WH-MAIN" || cfg.PriceList != "standard-selling" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AvailabilityTTLSeconds != 300 || cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_WAREHOUSE", "WH-BACK")
	t.Setenv("AVAILABILITY_TTL_SECONDS", "60")
	t.Setenv("AUTH_SECRET", "  secret-with-spaces  ")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected 9090, got %s", cfg.Port)
	}
	if cfg.DefaultWarehouse != "WH-BACK" {
		t.Fatalf("expected WH-BACK, got %s", cfg.DefaultWarehouse)
	}
	if cfg.AvailabilityTTLSeconds != 60 {
		t.Fatalf("expected ttl 60, got %d", cfg.AvailabilityTTLSeconds)
	}
	if cfg.AuthSecret != "secret-with-spaces" {
		t.Fatalf("expected trimmed secret, got %q", cfg.AuthSecret)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("AVAILABILITY_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.AvailabilityTTLSeconds != 300 {
		t.Fatalf("expected fallback 300, got %d", cfg.AvailabilityTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
