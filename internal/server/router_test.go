package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "nexus-ai-engine/configs"
	"nexus-ai-engine/pkg/apperrors"
	"nexus-ai-engine/pkg/forecast"
	"nexus-ai-engine/pkg/handlers"
	"nexus-ai-engine/pkg/llm"
	"nexus-ai-engine/pkg/llm/llmtest"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8000",
		OpenAIChatModel:   "gpt-4o-mini",
		OpenAIVisionModel: "gpt-4o",
		Environment:       "development",
		LogLevel:          "INFO",
		AllowedOrigins:    []string{"http://localhost:3000"},
	}
}

func testRouter(model *llmtest.Model) *gin.Engine {
	client := llm.NewClient(nil)
	if model != nil {
		client = llm.NewClient(model)
	}
	return NewRouter(testConfig(), Dependencies{
		LLM:        client,
		Forecaster: forecast.NewAdditiveModel(forecast.DefaultConfig()),
		Jitter:     services.NoJitter,
	})
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRouterSetup(t *testing.T) {
	r := testRouter(nil)

	routes := map[string]bool{}
	for _, ri := range r.Routes() {
		routes[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /",
		"GET /health",
		"GET /metrics",
		"POST /api/v1/chat",
		"POST /api/v1/predict-demand",
		"POST /api/v1/predict-demand/upload",
		"POST /api/v1/parse-invoice",
		"POST /api/v1/recommend-upsell",
	} {
		assert.True(t, routes[want], "route %s should be registered", want)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	r := testRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","openai_configured":false}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(services.RequestIDHeader))
}

func TestNilDependenciesUseDefaults(t *testing.T) {
	r := NewRouter(testConfig(), Dependencies{})

	w := postJSON(r, "/api/v1/chat", `{"tenant_id":"t","user_message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var errResp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp), w.Body.String())
	assert.Equal(t, apperrors.CodeConfiguration, errResp.Error.Code)
	assert.NotEmpty(t, errResp.RequestID)

	w = postJSON(r, "/api/v1/predict-demand", `{"tenant_id":"t","product_id":"p","historical_sales":[100,110,120],"dates":["2024-01-01","2024-02-01","2024-03-01"]}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCORS(t *testing.T) {
	r := testRouter(nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEmptyAllowedOriginsFallBackToDefault(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = nil

	var r *gin.Engine
	require.NotPanics(t, func() { r = NewRouter(cfg, Dependencies{}) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEndToEndDemandForecast(t *testing.T) {
	r := testRouter(nil)

	body, _ := json.Marshal(map[string]any{
		"tenant_id":        "tenant-1",
		"product_id":       "prod-1",
		"historical_sales": []int{150, 160, 170, 180, 190, 200},
		"dates":            []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01"},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict-demand", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		NextMonthForecast int     `json:"next_month_forecast"`
		Confidence        float64 `json:"confidence"`
		Trend             string  `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.NextMonthForecast, 0)
	assert.GreaterOrEqual(t, resp.Confidence, 0.5)
	assert.LessOrEqual(t, resp.Confidence, 0.95)
}

func TestEndToEndRecommendations(t *testing.T) {
	r := testRouter(nil)

	w := postJSON(r, "/api/v1/recommend-upsell", `{"tenant_id":"t","current_cart_items":["prod-123"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"product_id":"recommended-1"`)
	assert.Contains(t, w.Body.String(), `"confidence":0.75`)
}

func TestEndToEndChatAndMetrics(t *testing.T) {
	r := testRouter(&llmtest.Model{Reply: "Hello from Nexus"})

	w := postJSON(r, "/api/v1/chat", `{"tenant_id":"t","user_message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Hello from Nexus")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nexus_http_requests_total{method="POST",path="/api/v1/chat",status="200"} 1`)
}

func TestNewDependenciesWithSuggestionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pages:
  - page: /warehouse
    suggestions: [Count stock]
default: [Open home]
`), 0o600))

	cfg := testConfig()
	cfg.SuggestionsFile = path
	deps, err := NewDependencies(cfg, nil)
	require.NoError(t, err)
	assert.False(t, deps.LLM.Configured())
	assert.NotNil(t, deps.Forecaster)
	assert.Equal(t, []string{"Count stock"}, deps.Suggestions.Lookup("/warehouse/a"))
	assert.Equal(t, []string{"Open home"}, deps.Suggestions.Lookup("/sales"))

	deps.LLM = llm.NewClient(&llmtest.Model{Reply: "ok"})
	r := NewRouter(cfg, deps)
	w := postJSON(r, "/api/v1/chat", `{"tenant_id":"t","user_message":"hi","context":{"current_page":"/warehouse/bins"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"suggestions":["Count stock"]`)
}

func TestNewDependenciesInvalidSuggestionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pages: ["), 0o600))

	cfg := testConfig()
	cfg.SuggestionsFile = path
	_, err := NewDependencies(cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Environment = "production"
	NewLogger(cfg, &buf).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "nexus-ai-engine", entry["service"])
	assert.Equal(t, "production", entry["environment"])

	buf.Reset()
	cfg.Environment = "development"
	cfg.LogLevel = "ERROR"
	NewLogger(cfg, &buf).Info("dropped")
	assert.Empty(t, buf.String())
}
