package services

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nexus-ai-engine/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMonitoredRouter(t *testing.T) (*gin.Engine, *MonitoringService, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ms := NewMonitoringService(logger)

	r := gin.New()
	r.Use(RequestIDMiddleware(), ms.LoggingMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/fail", func(c *gin.Context) {
		RecordError(c, apperrors.RateLimit("OpenAI API quota exceeded", nil))
		c.JSON(http.StatusTooManyRequests, gin.H{})
	})
	r.GET("/metrics", ms.MetricsHandler())
	return r, ms, &buf
}

func TestRequestIDMiddleware(t *testing.T) {
	r, _, _ := newMonitoredRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestLoggingMiddlewareRecordsMetrics(t *testing.T) {
	r, ms, buf := newMonitoredRouter(t)

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(ms.requests.WithLabelValues(http.MethodGet, "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ms.requests.WithLabelValues(http.MethodGet, "/fail", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ms.requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ms.upstreamErrors.WithLabelValues(string(apperrors.CodeRateLimit))))
	assert.Equal(t, 0.0, testutil.ToFloat64(ms.inFlight))

	logs := buf.String()
	assert.Contains(t, logs, `"path":"/ok"`)
	assert.Contains(t, logs, `"status":429`)
	assert.Contains(t, logs, `"request_id"`)
}

func TestMetricsHandler(t *testing.T) {
	r, _, _ := newMonitoredRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, "nexus_http_requests_total"))
	assert.Contains(t, body, "nexus_http_request_duration_seconds")
}
