package services

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"nexus-ai-engine/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// RequestIDHeader リクエストIDのヘッダー名
	RequestIDHeader = "X-Request-Id"
	// RequestIDKey gin.Context にリクエストIDを保存するキー
	RequestIDKey = "request_id"
	// ErrorCodeKey ハンドラーが返したエラー分類を保存するキー
	ErrorCodeKey = "error_code"
)

// MonitoringService はAPIのモニタリング機能を提供します。
// リクエスト数・レイテンシ・外部サービスエラーを Prometheus 形式で集計します。
type MonitoringService struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	upstreamErrors *prometheus.CounterVec
	logger         *slog.Logger
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
// メトリクスはサービス専用のレジストリに登録されます。
func NewMonitoringService(logger *slog.Logger) *MonitoringService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MonitoringService{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexus_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_upstream_errors_total",
			Help: "Failed requests by error classification.",
		}, []string{"code"}),
		logger: logger,
	}
	s.registry.MustRegister(s.requests, s.duration, s.inFlight, s.upstreamErrors)
	return s
}

// Registry メトリクスのレジストリ
func (s *MonitoringService) Registry() *prometheus.Registry {
	return s.registry
}

// MetricsHandler は /metrics 用のハンドラーです。
func (s *MonitoringService) MetricsHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// RequestIDMiddleware はリクエストIDを払い出し、レスポンスヘッダーに設定します。
// クライアントが X-Request-Id を送った場合はその値を引き継ぎます。
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestID は gin.Context に保存されたリクエストIDを返します。
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RecordError はハンドラーが返したエラー分類を記録します。
func RecordError(c *gin.Context, err error) {
	if code := apperrors.CodeOf(err); code != "" {
		c.Set(ErrorCodeKey, string(code))
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.inFlight.Inc()
		defer s.inFlight.Dec()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		// 未登録ルートでラベルが増え続けないよう、ルートテンプレートで集計する
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		s.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())
		if code := c.GetString(ErrorCodeKey); code != "" && code != string(apperrors.CodeValidation) {
			s.upstreamErrors.WithLabelValues(code).Inc()
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if status >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		s.logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("request_id", RequestID(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", elapsed),
		)
	}
}
