package models

// ParseInvoiceRequest 請求書解析リクエスト
type ParseInvoiceRequest struct {
	ImageURL string `json:"image_url" binding:"required"` // JPEG, PNG, PDF の URL
}

// InvoiceLineItem 請求書の明細行
type InvoiceLineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// ParseInvoiceResponse 請求書から抽出した構造化データ
type ParseInvoiceResponse struct {
	VendorName  string            `json:"vendor_name"`
	InvoiceDate string            `json:"invoice_date"` // YYYY-MM-DD
	TotalAmount float64           `json:"total_amount"`
	LineItems   []InvoiceLineItem `json:"line_items"`
}
