package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://proxy.local/v1")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4.1-mini")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com,")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.True(t, cfg.OpenAIConfigured())
	assert.Equal(t, "http://proxy.local/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-4.1-mini", cfg.OpenAIChatModel)
	assert.Equal(t, "gpt-4o", cfg.OpenAIVisionModel)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数を空にする
	for key := range defaults {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.OpenAIConfigured())
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIChatModel)
	assert.Equal(t, "gpt-4o", cfg.OpenAIVisionModel)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"Warning":  slog.LevelWarn,
		"ERROR":    slog.LevelError,
		"CRITICAL": slog.LevelError,
		"verbose":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, (&Config{LogLevel: in}).SlogLevel(), in)
	}
}

func TestLoadFromFlagOverride(t *testing.T) {
	t.Setenv("PORT", "9000")
	v := NewViper()
	v.Set(KeyPort, "7000")

	assert.Equal(t, "7000", LoadFrom(v).Port)
}

func TestParseSuggestions(t *testing.T) {
	cfg, err := ParseSuggestions([]byte(`
pages:
  - page: /inventory
    suggestions: [View low stock alerts, Check product details]
  - page: /sales
    suggestions:
      - Create new order
default: [View dashboard]
`))
	assert.NoError(t, err)
	assert.Len(t, cfg.Pages, 2)
	assert.Equal(t, "/inventory", cfg.Pages[0].Page)
	assert.Equal(t, []string{"Create new order"}, cfg.Pages[1].Suggestions)
	assert.Equal(t, []string{"View dashboard"}, cfg.Default)
}

func TestParseSuggestionsErrors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":     "pages: [",
		"empty page":       "pages:\n  - page: ''\n    suggestions: [a]\ndefault: [b]\n",
		"no suggestions":   "pages:\n  - page: /a\ndefault: [b]\n",
		"missing defaults": "pages:\n  - page: /a\n    suggestions: [a]\n",
	}
	for name, data := range tests {
		_, err := ParseSuggestions([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestLoadSuggestionsMissingFile(t *testing.T) {
	_, err := LoadSuggestions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAllowedOriginsFallback(t *testing.T) {
	for _, raw := range []string{",", " , ,", "  "} {
		t.Setenv("ALLOWED_ORIGINS", raw)
		assert.Equal(t, []string{"http://localhost:3000"}, LoadConfig().AllowedOrigins, raw)
	}
	assert.Equal(t, []string{"http://localhost:3000"}, DefaultAllowedOrigins())
}
