package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/booking")
	t.Setenv("JWT_HMAC_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr())
	}
	if !cfg.IsLocal() {
		t.Fatal("default environment should be local")
	}
	if cfg.Google.CalendarID != "primary" {
		t.Fatalf("CalendarID = %q, want primary", cfg.Google.CalendarID)
	}
	if cfg.Cache.ScheduleSize != 1024 {
		t.Fatalf("ScheduleSize = %d, want 1024", cfg.Cache.ScheduleSize)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_HMAC_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadRequiresSomeAuth(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/booking")
	t.Setenv("JWT_HMAC_SECRET", "")
	t.Setenv("STATIC_TOKENS", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without any auth configuration")
	}
}

func TestLoadStaticTokens(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/booking")
	t.Setenv("STATIC_TOKENS", "tok-a,tok-b")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Auth.StaticTokens) != 2 {
		t.Fatalf("StaticTokens = %v, want 2 entries", cfg.Auth.StaticTokens)
	}
}

func TestLoadAMQPRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("AMQP_ENABLED", "true")
	t.Setenv("AMQP_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when AMQP enabled without URL")
	}
}
