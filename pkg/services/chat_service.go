package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nexus-ai-engine/pkg/llm"
	"nexus-ai-engine/pkg/models"
)

// 送信する会話履歴の最大件数
const maxHistoryMessages = 5

// ChatCompleter は外部LLMへのチャット補完呼び出しです。*llm.Client が実装します。
type ChatCompleter interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.CallOptions) (string, error)
}

// SuggestionRule は閲覧ページに応じたおすすめアクション
type SuggestionRule struct {
	Page        string // current_page に含まれていれば一致
	Suggestions []string
}

// SuggestionTable は優先順位付きのおすすめアクション表です。
// 先頭から順に照合し、最初に一致したルールを使います。
type SuggestionTable struct {
	rules    []SuggestionRule
	fallback []string
}

// NewSuggestionTable は rules と fallback のコピーから表を作成します。
func NewSuggestionTable(rules []SuggestionRule, fallback []string) SuggestionTable {
	copied := make([]SuggestionRule, len(rules))
	for i, r := range rules {
		copied[i] = SuggestionRule{Page: r.Page, Suggestions: append([]string(nil), r.Suggestions...)}
	}
	return SuggestionTable{rules: copied, fallback: append([]string(nil), fallback...)}
}

// DefaultSuggestionTable NEXUS の各モジュール向けのおすすめアクション
func DefaultSuggestionTable() SuggestionTable {
	return NewSuggestionTable([]SuggestionRule{
		{Page: "/inventory", Suggestions: []string{"View low stock alerts", "Check product details", "Create purchase order"}},
		{Page: "/crm/leads", Suggestions: []string{"Create new lead", "View pipeline", "Export leads to CSV"}},
		{Page: "/crm/deals", Suggestions: []string{"View deal pipeline", "Move deal to next stage", "Generate sales report"}},
		{Page: "/sales", Suggestions: []string{"Create new order", "View recent orders", "Generate invoice"}},
		{Page: "/purchasing", Suggestions: []string{"Create purchase order", "Receive goods", "View vendor list"}},
	}, []string{"View dashboard", "Check notifications", "Browse help docs"})
}

// Empty は表が未設定かどうかを返す
func (t SuggestionTable) Empty() bool {
	return len(t.rules) == 0 && len(t.fallback) == 0
}

// Lookup は currentPage に対応するおすすめアクションを返します。
func (t SuggestionTable) Lookup(currentPage string) []string {
	for _, rule := range t.rules {
		if strings.Contains(currentPage, rule.Page) {
			return append([]string(nil), rule.Suggestions...)
		}
	}
	return append([]string(nil), t.fallback...)
}

// ChatService は Ask Nexus アシスタントの会話を処理します。
type ChatService struct {
	client      ChatCompleter
	model       string
	suggestions SuggestionTable
}

// NewChatService 新しいチャットサービスを作成
func NewChatService(client ChatCompleter, model string, suggestions SuggestionTable) *ChatService {
	return &ChatService{
		client:      client,
		model:       model,
		suggestions: suggestions,
	}
}

// buildSystemPrompt 閲覧ページとテナントを埋め込んだシステムプロンプトを生成
func buildSystemPrompt(currentPage, tenantID string) string {
	return fmt.Sprintf(`You are Nexus AI, a helpful assistant for the NEXUS CRM & ERP platform.

Current Context:
- User is viewing: %s
- Tenant: %s

Your capabilities:
- Answer questions about the NEXUS platform features
- Provide guidance on how to use different modules (CRM, Inventory, Sales, Purchasing)
- Suggest actions users can take
- Explain business metrics and reports

Guidelines:
- Be concise and helpful
- If the user asks about data (sales, inventory levels, etc.), remind them that you can't access live data, but suggest where they can find it
- Suggest specific actions they can take (e.g., "Check the Low Stock Alerts page")
- Keep responses under 100 words when possible
- Be professional but friendly

If you don't know something, admit it and suggest how they might find the answer.`, currentPage, tenantID)
}

// BuildMessages はシステムプロンプト、直近の会話履歴、ユーザーメッセージの順にメッセージを組み立てます。
func BuildMessages(req models.ChatRequest) []llm.Message {
	history := req.History()
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role: llm.RoleSystem,
		Text: buildSystemPrompt(req.CurrentPage(), req.TenantID),
	})
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == string(llm.RoleAssistant) {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Text: h.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Text: req.UserMessage})
}

// Chat ユーザーメッセージに応答し、閲覧ページに応じたおすすめアクションを付与する
func (cs *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	reply, err := cs.client.Chat(ctx, BuildMessages(req), llm.CallOptions{
		Model:       cs.model,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		classified := llm.Classify(err, "Chat error")
		slog.WarnContext(ctx, "chat completion failed", "tenant_id", req.TenantID, "error", err)
		return nil, classified
	}

	return &models.ChatResponse{
		Response:    reply,
		Suggestions: cs.suggestions.Lookup(req.CurrentPage()),
	}, nil
}
