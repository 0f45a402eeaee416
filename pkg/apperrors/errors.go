// Package apperrors はエンドポイント共通のエラー分類を提供します。
//
// 外部呼び出しの失敗や入力検証エラーは、ハンドラーに到達する前に
// この分類のいずれかへ変換されます。
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code はエラー分類を表します。
type Code string

const (
	// CodeValidation 入力が不正または不足している
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeConfiguration 必須の認証情報が設定されていない
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeAuthentication 外部サービスが認証情報を拒否した
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	// CodeRateLimit 外部サービスのクォータ超過・スロットリング
	CodeRateLimit Code = "RATE_LIMIT_ERROR"
	// CodeParse 外部サービスの応答を期待する形に解釈できない
	CodeParse Code = "PARSE_ERROR"
	// CodeUpstream その他の外部サービス障害
	CodeUpstream Code = "UPSTREAM_ERROR"
)

// Error は分類コード付きのエラーです。
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is は同じコードを持つ *Error と一致します。
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// New creates a new classified error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a classified error with an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation は入力検証エラーを作成します。
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// Configuration は設定エラーを作成します。
func Configuration(message string) *Error {
	return New(CodeConfiguration, message)
}

// Authentication は外部サービスの認証エラーを作成します。
func Authentication(message string, cause error) *Error {
	return Wrap(CodeAuthentication, message, cause)
}

// RateLimit は外部サービスのクォータ超過エラーを作成します。
func RateLimit(message string, cause error) *Error {
	return Wrap(CodeRateLimit, message, cause)
}

// Parse は外部サービス応答の解析エラーを作成します。
func Parse(message string, cause error) *Error {
	return Wrap(CodeParse, message, cause)
}

// Upstream はその他の外部サービスエラーを作成します。
func Upstream(message string, cause error) *Error {
	return Wrap(CodeUpstream, message, cause)
}

// CodeOf returns the classification of err, or "" when err is not classified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus はエラー分類に対応するHTTPステータスを返します。
// 分類されていないエラーは 500 として扱います。
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage はクライアントへ返すメッセージを返します。
// 分類されていないエラーの内部情報は外に出しません。
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
