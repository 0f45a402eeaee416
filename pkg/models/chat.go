package models

// ChatMessage 会話履歴の1メッセージ
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatContext チャットのコンテキスト
type ChatContext struct {
	CurrentPage         string         `json:"current_page,omitempty"` // 例: "/inventory/products"
	ConversationHistory []ChatMessage  `json:"conversation_history" binding:"dive"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// ChatRequest Ask Nexus へのチャットリクエスト
type ChatRequest struct {
	TenantID    string       `json:"tenant_id" binding:"required"`
	UserMessage string       `json:"user_message" binding:"required"`
	Context     *ChatContext `json:"context,omitempty"`
}

// CurrentPage 閲覧中のページを返す。未指定の場合は "unknown"
func (r ChatRequest) CurrentPage() string {
	if r.Context == nil || r.Context.CurrentPage == "" {
		return "unknown"
	}
	return r.Context.CurrentPage
}

// History 会話履歴を返す
func (r ChatRequest) History() []ChatMessage {
	if r.Context == nil {
		return nil
	}
	return r.Context.ConversationHistory
}

// ChatResponse Ask Nexus の応答
type ChatResponse struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
}
