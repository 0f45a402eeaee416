package models

// RecommendUpsellRequest アップセル推薦リクエスト
type RecommendUpsellRequest struct {
	TenantID         string   `json:"tenant_id" binding:"required"`
	CurrentCartItems []string `json:"current_cart_items" binding:"required"`
}

// UpsellRecommendation 推薦商品
type UpsellRecommendation struct {
	ProductID  string  `json:"product_id"`
	Confidence float64 `json:"confidence"` // 0-1
	Reason     string  `json:"reason"`
}

// RecommendUpsellResponse 推薦結果
type RecommendUpsellResponse struct {
	Recommendations []UpsellRecommendation `json:"recommendations"`
}
