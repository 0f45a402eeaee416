package handlers

import (
	"net/http"

	"nexus-ai-engine/pkg/models"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-gonic/gin"
)

// ChatHandler Ask Nexus チャットハンドラー
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler 新しいチャットハンドラーを作成
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 閲覧中のページと会話履歴を踏まえてユーザーの質問に回答する
func (ch *ChatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := ch.chatService.Chat(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
