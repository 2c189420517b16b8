package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate = %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.Submission.Window != time.Minute || cfg.Submission.MaxCount != 5 {
		t.Fatalf("submission = %+v", cfg.Submission)
	}
	if cfg.Submission.MinInterval != time.Second {
		t.Fatalf("MinInterval = %v", cfg.Submission.MinInterval)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("Redis.Addr = %q, want disabled by default", cfg.Redis.Addr)
	}
	if cfg.OTEL.Enabled {
		t.Fatal("OTEL enabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "warning") // normalized to warn
	t.Setenv("GIN_MODE", "DEBUG")
	t.Setenv("RATE_WINDOW", "2m")
	t.Setenv("RATE_MAX_COUNT", "3")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ADMIN_EMAIL", "admin@vallit.net")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.GinMode != "debug" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
	if cfg.Submission.Window != 2*time.Minute || cfg.Submission.MaxCount != 3 {
		t.Fatalf("submission = %+v", cfg.Submission)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.SMTP.AdminEmail != "admin@vallit.net" {
		t.Fatalf("AdminEmail = %q", cfg.SMTP.AdminEmail)
	}
}

func TestLoad_AdminEmailFallsBackToSMTPUser(t *testing.T) {
	t.Setenv("SMTP_USER", "mailer@vallit.net")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTP.AdminEmail != "mailer@vallit.net" {
		t.Fatalf("AdminEmail = %q", cfg.SMTP.AdminEmail)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero window", "RATE_WINDOW", "0s"},
		{"zero max count", "RATE_MAX_COUNT", "0"},
		{"negative min interval", "SPAM_MIN_INTERVAL", "-1s"},
		{"zero effect wait", "EFFECT_WAIT", "0s"},
		{"bad smtp port", "SMTP_PORT", "70000"},
		{"zero idempotency ttl", "IDEMPOTENCY_TTL", "0s"},
		{"sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_UnknownGinModeFallsBack(t *testing.T) {
	t.Setenv("GIN_MODE", "turbo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api",
		"/api/":    "/api",
		"/api/v1/": "/api/v1",
		" /api ":   "/api",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("splitCSV = %#v", got)
	}
	if splitCSV("") != nil {
		t.Fatal("splitCSV(empty) should be nil")
	}
}
