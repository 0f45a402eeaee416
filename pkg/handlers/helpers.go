package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"nexus-ai-engine/pkg/apperrors"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorBody エラーレスポンスの本体
type ErrorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// ErrorResponse すべてのエンドポイント共通のエラーレスポンス
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// respondError はエラー分類に応じたステータスとエラーレスポンスを返す
func respondError(c *gin.Context, err error) {
	services.RecordError(c, err)

	status := apperrors.HTTPStatus(err)
	code := apperrors.CodeOf(err)
	if code == "" {
		code = apperrors.CodeUpstream
		slog.ErrorContext(c.Request.Context(), "unclassified error", "request_id", services.RequestID(c), "error", err)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     ErrorBody{Code: code, Message: apperrors.PublicMessage(err)},
		RequestID: services.RequestID(c),
	})
}

// bindError はリクエストのバインドエラーを入力検証エラーに変換する
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fieldPath(fe), fe.Tag()))
		}
		return apperrors.Validation("Invalid request: %s", strings.Join(fields, ", "))
	}
	return apperrors.Validation("Invalid request body: %s", err.Error())
}

// fieldPath は "ChatRequest.Context.ConversationHistory[0].Role" から型名を除いた経路を返す
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Recovery はパニックを捕捉し、共通のエラーレスポンスで 500 を返すミドルウェアです。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "panic recovered", "request_id", services.RequestID(c), "panic", recovered)
		respondError(c, fmt.Errorf("panic: %v", recovered))
	})
}
