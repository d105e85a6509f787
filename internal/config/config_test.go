package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the process environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT",
		"IDLE_TIMEOUT", "MAX_HEADER_BYTES", "GIN_MODE",
		"LOG_LEVEL", "LOG_PRETTY", "API_BASE_PATH", "DB_PATH",
		"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_TEMPERATURE",
		"LLM_MAX_TOKENS", "LLM_TOP_P", "LLM_TOP_K", "LLM_TIMEOUT",
		"LLM_HTTP_REFERER", "LLM_APP_TITLE",
		"RATE_RPS", "RATE_BURST", "CORS_ALLOWED_ORIGINS",
		"ENABLE_HSTS", "HSTS_MAX_AGE", "IDEMPOTENCY_TTL",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
		"OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.LogLevel != "info" || cfg.LogPretty {
		t.Errorf("logging defaults: level=%q pretty=%v", cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model == "" || cfg.LLM.MaxTokens != 1024 || cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM generation defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.WriteTimeout <= cfg.LLM.Timeout {
		t.Errorf("WriteTimeout %v must exceed LLM.Timeout %v for streaming", cfg.WriteTimeout, cfg.LLM.Timeout)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Errorf("rate defaults: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("LLM_BASE_URL", "https://example.test/v1///")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.test , ,https://b.test ")
	t.Setenv("LOG_PRETTY", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LOG_LEVEL=WARNING not normalized: %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("unknown GIN_MODE not coerced: %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.LLM.BaseURL != "https://example.test/v1" {
		t.Errorf("trailing slashes kept: %q", cfg.LLM.BaseURL)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.test" {
		t.Errorf("CORS origins = %v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.LogPretty {
		t.Error("LOG_PRETTY=yes not parsed")
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		key, val, frag string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"LLM_TEMPERATURE", "3.5", "LLM_TEMPERATURE"},
		{"LLM_TOP_P", "1.5", "LLM_TOP_P"},
		{"LLM_MAX_TOKENS", "-1", "LLM_MAX_TOKENS"},
		{"RATE_RPS", "-2", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"OTEL_TRACES_SAMPLER_ARG", "2", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil {
				t.Fatalf("%s=%s accepted", tc.key, tc.val)
			}
			if !strings.Contains(err.Error(), tc.frag) {
				t.Fatalf("error %q does not name %s", err, tc.frag)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"api", "/api"},
		{"/api/v1/", "/api/v1"},
		{"  /api  ", "/api"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
