package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// 設定キー
const (
	KeyOpenAIAPIKey      = "OPENAI_API_KEY"
	KeyOpenAIBaseURL     = "OPENAI_BASE_URL"
	KeyOpenAIChatModel   = "OPENAI_CHAT_MODEL"
	KeyOpenAIVisionModel = "OPENAI_VISION_MODEL"
	KeyEnvironment       = "ENVIRONMENT"
	KeyLogLevel          = "LOG_LEVEL"
	KeyPort              = "PORT"
	KeyAllowedOrigins    = "ALLOWED_ORIGINS"
	KeySuggestionsFile   = "SUGGESTIONS_FILE"
)

var defaults = map[string]string{
	KeyOpenAIAPIKey:      "",
	KeyOpenAIBaseURL:     "",
	KeyOpenAIChatModel:   "gpt-4o-mini",
	KeyOpenAIVisionModel: "gpt-4o",
	KeyEnvironment:       "development",
	KeyLogLevel:          "INFO",
	KeyPort:              "8000",
	KeyAllowedOrigins:    "http://localhost:3000",
	KeySuggestionsFile:   "",
}

// Config holds the application configuration
type Config struct {
	Port              string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIChatModel   string
	OpenAIVisionModel string
	Environment       string
	LogLevel          string
	AllowedOrigins    []string
	SuggestionsFile   string // おすすめアクション表のYAML（任意）
}

// NewViper は既定値と環境変数を登録した viper インスタンスを作成します。
// cobra のフラグはこのインスタンスに BindPFlag で結び付けます。
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	return v
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return LoadFrom(NewViper())
}

// LoadFrom は v から設定を読み込みます。
func LoadFrom(v *viper.Viper) *Config {
	return &Config{
		Port:              getEnv(v, KeyPort),
		OpenAIAPIKey:      getEnv(v, KeyOpenAIAPIKey),
		OpenAIBaseURL:     getEnv(v, KeyOpenAIBaseURL),
		OpenAIChatModel:   getEnv(v, KeyOpenAIChatModel),
		OpenAIVisionModel: getEnv(v, KeyOpenAIVisionModel),
		Environment:       getEnv(v, KeyEnvironment),
		LogLevel:          getEnv(v, KeyLogLevel),
		AllowedOrigins:    allowedOrigins(getEnv(v, KeyAllowedOrigins)),
		SuggestionsFile:   getEnv(v, KeySuggestionsFile),
	}
}

// IsProduction 本番環境かどうか
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// OpenAIConfigured APIキーが設定されているかどうか
func (c *Config) OpenAIConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// SlogLevel LOG_LEVEL を slog のレベルに変換する。不明な値は INFO
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(strings.TrimSpace(c.LogLevel)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv gets a value with its registered default; empty values fall back to the default
func getEnv(v *viper.Viper, key string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaults[key]
}

// DefaultAllowedOrigins ALLOWED_ORIGINS の既定値
func DefaultAllowedOrigins() []string {
	return splitOrigins(defaults[KeyAllowedOrigins])
}

// allowedOrigins は区切り文字しかない値でも空にならないよう既定値に戻す
func allowedOrigins(s string) []string {
	if origins := splitOrigins(s); len(origins) > 0 {
		return origins
	}
	return DefaultAllowedOrigins()
}

// splitOrigins はカンマ区切りのオリジン一覧を分割する
func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
