package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"nexus-ai-engine/pkg/apperrors"
	"nexus-ai-engine/pkg/llm"
	"nexus-ai-engine/pkg/models"
)

const invoiceExtractionPrompt = `Extract the following information from this invoice image:

1. Vendor name (company that issued the invoice)
2. Invoice date (format: YYYY-MM-DD)
3. Total amount
4. Line items (description, quantity, unit price, total for each item)

Return ONLY valid JSON matching this exact schema:
{
  "vendor_name": "string",
  "invoice_date": "YYYY-MM-DD",
  "total_amount": number,
  "line_items": [
    {
      "description": "string",
      "quantity": number,
      "unit_price": number,
      "total": number
    }
  ]
}

Important:
- Extract all line items you can see
- Use numbers without currency symbols
- Date must be YYYY-MM-DD format
- Return ONLY the JSON, no markdown or explanation
`

// InvoiceService は請求書画像から構造化データを抽出します。
type InvoiceService struct {
	client ChatCompleter
	model  string
}

// NewInvoiceService 新しい請求書解析サービスを作成
func NewInvoiceService(client ChatCompleter, model string) *InvoiceService {
	return &InvoiceService{client: client, model: model}
}

// Parse 画像URLの請求書を解析する
func (is *InvoiceService) Parse(ctx context.Context, req models.ParseInvoiceRequest) (*models.ParseInvoiceResponse, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, apperrors.Validation("image_url is required")
	}

	reply, err := is.client.Chat(ctx, []llm.Message{{
		Role:     llm.RoleUser,
		Text:     invoiceExtractionPrompt,
		ImageURL: req.ImageURL,
	}}, llm.CallOptions{
		Model:       is.model,
		MaxTokens:   1500,
		Temperature: 0.1,
	})
	if err != nil {
		slog.WarnContext(ctx, "invoice extraction failed", "error", err)
		return nil, llm.Classify(err, "Invoice parsing error")
	}

	invoice, err := DecodeInvoice(reply)
	if err != nil {
		slog.WarnContext(ctx, "invoice reply is not valid JSON", "error", err)
		return nil, apperrors.Parse(fmt.Sprintf("Failed to parse GPT-4o response as JSON: %s", err.Error()), err)
	}
	return invoice, nil
}

// stripCodeFence は ```json ... ``` または ``` ... ``` で囲まれた応答から中身を取り出す
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type rawLineItem struct {
	Description *string      `json:"description"`
	Quantity    *json.Number `json:"quantity"`
	UnitPrice   *float64     `json:"unit_price"`
	Total       *float64     `json:"total"`
}

type rawInvoice struct {
	VendorName  *string       `json:"vendor_name"`
	InvoiceDate *string       `json:"invoice_date"`
	TotalAmount *float64      `json:"total_amount"`
	LineItems   []rawLineItem `json:"line_items"`
}

// DecodeInvoice はLLMの応答テキストを請求書データに変換します。
// コードフェンスは取り除き、必須項目の欠落や型の不一致はエラーにします。
func DecodeInvoice(reply string) (*models.ParseInvoiceResponse, error) {
	body := stripCodeFence(reply)

	var raw rawInvoice
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}

	var missing []string
	if raw.VendorName == nil {
		missing = append(missing, "vendor_name")
	}
	if raw.InvoiceDate == nil {
		missing = append(missing, "invoice_date")
	}
	if raw.TotalAmount == nil {
		missing = append(missing, "total_amount")
	}
	if raw.LineItems == nil {
		missing = append(missing, "line_items")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	out := &models.ParseInvoiceResponse{
		VendorName:  *raw.VendorName,
		InvoiceDate: *raw.InvoiceDate,
		TotalAmount: *raw.TotalAmount,
		LineItems:   make([]models.InvoiceLineItem, 0, len(raw.LineItems)),
	}
	for i, item := range raw.LineItems {
		if item.Description == nil || item.Quantity == nil || item.UnitPrice == nil || item.Total == nil {
			return nil, fmt.Errorf("line_items[%d]: description, quantity, unit_price and total are required", i)
		}
		qty, err := integralQuantity(*item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("line_items[%d].quantity: %w", i, err)
		}
		out.LineItems = append(out.LineItems, models.InvoiceLineItem{
			Description: *item.Description,
			Quantity:    qty,
			UnitPrice:   *item.UnitPrice,
			Total:       *item.Total,
		})
	}
	return out, nil
}

var errFractionalQuantity = errors.New("quantity must be a whole number")

// integralQuantity は 3 や 3.0 を受け付け、3.5 は拒否する
func integralQuantity(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errFractionalQuantity
	}
	return int(f), nil
}
