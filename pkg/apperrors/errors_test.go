package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"configuration", Configuration("missing key"), http.StatusInternalServerError},
		{"authentication", Authentication("invalid key", nil), http.StatusUnauthorized},
		{"rate limit", RateLimit("quota", nil), http.StatusTooManyRequests},
		{"parse", Parse("bad json", nil), http.StatusInternalServerError},
		{"upstream", Upstream("boom", nil), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", RateLimit("quota", nil)), http.StatusTooManyRequests},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("Chat error: connection reset", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Error{Code: CodeUpstream})
	assert.NotErrorIs(t, err, &Error{Code: CodeParse})
	assert.Equal(t, CodeUpstream, CodeOf(fmt.Errorf("wrapped: %w", err)))
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "OpenAI API key not configured", PublicMessage(Configuration("OpenAI API key not configured")))
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("secret internal detail")))
}
