package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test from an empty directory so no .env or config.yaml
// from the repo leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, "")
	for _, key := range []string{"ENV", "PORT", "DATABASE_URL", "LLM_PROVIDER", "CATALOG_SOURCE", "CORS_ALLOW_ORIGINS", "MOOD_TIMEZONE", "JWT_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Env != "dev" || cfg.CatalogSource != "local" || cfg.LLMProvider != "dashscope" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LLMTimeout != 30*time.Second || cfg.RecommendationLimit != 5 || cfg.LLMTemperature != 0.7 {
		t.Fatalf("unexpected numeric defaults %+v", cfg)
	}
	if len(cfg.CORSAllowOrigin) != 1 || cfg.CORSAllowOrigin[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors %v", cfg.CORSAllowOrigin)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "moodfood.yaml")
	yaml := strings.Join([]string{
		"port: \"9090\"",
		"llm_provider: anthropic",
		"llm_timeout: 12s",
		"recommendation_limit: 8",
		"cors_allow_origins:",
		"  - https://a.example",
		"  - https://b.example",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "7070")
	t.Setenv("MOOD_CLASSIFIER_TIMEOUT", "3s")
	t.Setenv("AI_RATE_LIMIT_RPS", "0.5")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("expected env to win for port, got %q", cfg.Port)
	}
	if cfg.LLMProvider != "anthropic" || cfg.LLMTimeout != 12*time.Second || cfg.RecommendationLimit != 8 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.MoodClassifierTimeout != 3*time.Second || cfg.AIRateLimitRPS != 0.5 || !cfg.AutoMigrate {
		t.Fatalf("expected env values, got %+v", cfg)
	}
	if len(cfg.CORSAllowOrigin) != 2 {
		t.Fatalf("expected yaml list, got %v", cfg.CORSAllowOrigin)
	}
}

func TestLoadSplitsCommaSeparatedOrigins(t *testing.T) {
	isolate(t)
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "https://b.example" {
		t.Fatalf("unexpected origins %q", cfg.CORSAllowOrigin)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"postgres without url", func(c *Config) { c.CatalogSource = "postgres" }, "DATABASE_URL"},
		{"s3 without bucket", func(c *Config) { c.CatalogSource = "s3" }, "S3_BUCKET"},
		{"unknown source", func(c *Config) { c.CatalogSource = "ftp" }, "CATALOG_SOURCE"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "cohere" }, "LLM_PROVIDER"},
		{"bad timezone", func(c *Config) { c.MoodTimezone = "Mars/Olympus" }, "MOOD_TIMEZONE"},
		{"production needs secrets", func(c *Config) { c.Env = "production" }, "JWT_SECRET"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLocationAndAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.MoodTimezone = "Asia/Jakarta"
	if cfg.Location().String() != "Asia/Jakarta" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
	cfg.DashScopeAPIKey = "ds"
	cfg.AnthropicAPIKey = "an"
	if cfg.LLMAPIKey() != "ds" {
		t.Fatalf("expected dashscope key")
	}
	cfg.LLMProvider = "anthropic"
	if cfg.LLMAPIKey() != "an" {
		t.Fatalf("expected anthropic key")
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := isolate(t)
	t.Setenv("PORT", "7000")
	content := "# local\nPORT=9100\nDATABASE_URL=\"postgres://localhost/moodfood\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7000" {
		t.Fatalf("expected process env to win, got %q", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://localhost/moodfood" {
		t.Fatalf("expected DATABASE_URL from .env, got %q", cfg.DatabaseURL)
	}
}
