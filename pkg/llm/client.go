// Package llm は外部のチャット補完サービス（OpenAI互換）への呼び出しを管理します。
//
// 実際の呼び出しは langchaingo の llms.Model に委譲するため、
// テストでは任意の llms.Model 実装を差し込めます。
package llm

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nexus-ai-engine/pkg/apperrors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Role チャットメッセージの役割
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message チャットメッセージ。ImageURL が設定されている場合は画像パートを付与する
type Message struct {
	Role     Role
	Text     string
	ImageURL string
}

// CallOptions 生成パラメータ
type CallOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client は外部LLMへのリクエストを管理します。
// model が nil の場合（APIキー未設定）、すべての呼び出しは設定エラーになります。
type Client struct {
	model llms.Model
}

// NewOpenAIClient 新しいOpenAIクライアントを作成
// apiKey が空の場合は呼び出し時に設定エラーを返すクライアントになります。
func NewOpenAIClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; LLM endpoints will report a configuration error")
		return &Client{}, nil
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{model: model}, nil
}

// NewClient は任意の llms.Model を使うクライアントを作成します。
func NewClient(model llms.Model) *Client {
	return &Client{model: model}
}

// Configured APIキーが設定されているかどうか
func (c *Client) Configured() bool {
	return c != nil && c.model != nil
}

// Chat メッセージ列を送信し、最初の候補のテキストを返す
func (c *Client) Chat(ctx context.Context, messages []Message, opts CallOptions) (string, error) {
	if !c.Configured() {
		return "", apperrors.Configuration("OpenAI API key not configured")
	}

	callOpts := []llms.CallOption{
		llms.WithMaxTokens(opts.MaxTokens),
		llms.WithTemperature(opts.Temperature),
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	resp, err := c.model.GenerateContent(ctx, toMessageContent(messages), callOpts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", openai.ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func toMessageContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		parts := []llms.ContentPart{llms.TextContent{Text: m.Text}}
		if m.ImageURL != "" {
			parts = append(parts, llms.ImageURLPart(m.ImageURL))
		}
		out = append(out, llms.MessageContent{Role: chatMessageType(m.Role), Parts: parts})
	}
	return out
}

func chatMessageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
