package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "NEXUS AI Engine"
	serviceVersion = "1.0.0"
)

// HealthHandler はサービス情報とヘルスチェックのハンドラです。
type HealthHandler struct {
	environment string
	configured  func() bool
}

// NewHealthHandler は新しいHealthHandlerを生成します。
// configured は外部LLMの認証情報が設定されているかを返します。
func NewHealthHandler(environment string, configured func() bool) *HealthHandler {
	return &HealthHandler{environment: environment, configured: configured}
}

// Root はサービス名・バージョン・実行環境を返します。
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     serviceName,
		"status":      "running",
		"version":     serviceVersion,
		"environment": h.environment,
	})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
// APIキーの値そのものは返しません。
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"openai_configured": h.configured != nil && h.configured(),
	})
}
