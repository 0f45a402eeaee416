package llm

import (
	"errors"
	"fmt"
	"strings"

	"nexus-ai-engine/pkg/apperrors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Classify は外部LLM呼び出しのエラーをエラー分類に変換します。
// prefix は分類外のエラーメッセージの先頭に付与されます（例: "Chat error"）。
func Classify(err error, prefix string) error {
	if err == nil {
		return nil
	}

	// 既に分類済み（設定エラーなど）のものはそのまま返す
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	mapped := openai.MapError(err)
	switch {
	case llms.IsAuthenticationError(mapped):
		return apperrors.Authentication("Invalid OpenAI API key", err)
	case llms.IsRateLimitError(mapped), llms.IsQuotaExceededError(mapped):
		return apperrors.RateLimit("OpenAI API quota exceeded", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api_key"), strings.Contains(msg, "api key"):
		return apperrors.Authentication("Invalid OpenAI API key", err)
	case strings.Contains(msg, "quota"):
		return apperrors.RateLimit("OpenAI API quota exceeded", err)
	}

	return apperrors.Upstream(fmt.Sprintf("%s: %s", prefix, err.Error()), err)
}
