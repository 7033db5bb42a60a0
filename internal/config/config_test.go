package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	for _, key := range []string{"PORT", "DB_NAME", "REDIS_DB", "SUBSCRIPTION_PRICE_CENTS", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "REMINDER_SCHEDULE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("testdata/missing.env")
	var envErr *EnvFileError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected EnvFileError for a missing file, got %v", err)
	}
	if cfg == nil {
		t.Fatal("config should still be returned when only the env file is missing")
	}
	if cfg.Port != "8080" || cfg.DBName != "realestate" {
		t.Errorf("unexpected defaults: port=%s db=%s", cfg.Port, cfg.DBName)
	}
	if cfg.SubscriptionPriceCents != 1000 {
		t.Errorf("price = %d, want 1000", cfg.SubscriptionPriceCents)
	}
	if cfg.AccessTokenTTL != 24*time.Hour {
		t.Errorf("access ttl = %v", cfg.AccessTokenTTL)
	}
	if cfg.ReminderSchedule != "0 9 * * *" {
		t.Errorf("schedule = %q", cfg.ReminderSchedule)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load("testdata/missing.env"); err == nil || errors.As(err, new(*EnvFileError)) {
		t.Fatalf("expected a hard error without JWT_SECRET, got %v", err)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_DB", "")
	t.Setenv("SUBSCRIPTION_PRICE_CENTS", "ten")

	if _, err := Load("testdata/missing.env"); err == nil {
		t.Fatal("expected an error for a non-numeric price")
	}
}
