// Package llmtest はテスト用の llms.Model 実装を提供します。
package llmtest

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call 記録された1回分の呼び出し
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// Model は固定の応答（またはエラー）を返し、受け取ったリクエストを記録します。
type Model struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls []Call
}

// GenerateContent implements llms.Model.
func (m *Model) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Messages: messages, Options: opts})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.Reply}},
	}, nil
}

// Call implements llms.Model.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls 記録された呼び出しを返す
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall 最後の呼び出しを返す。呼び出しがない場合は false
func (m *Model) LastCall() (Call, bool) {
	calls := m.Calls()
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}
