package handlers

import (
	"net/http"

	"nexus-ai-engine/pkg/models"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-gonic/gin"
)

// InvoiceHandler 請求書OCRハンドラー
type InvoiceHandler struct {
	invoiceService *services.InvoiceService
}

// NewInvoiceHandler 新しい請求書ハンドラーを作成
func NewInvoiceHandler(invoiceService *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// ParseInvoice 請求書画像から取引先・日付・金額・明細を抽出
func (ih *InvoiceHandler) ParseInvoice(c *gin.Context) {
	var req models.ParseInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := ih.invoiceService.Parse(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
