package models

// PredictDemandRequest 需要予測リクエスト
type PredictDemandRequest struct {
	TenantID        string   `json:"tenant_id" binding:"required"`
	ProductID       string   `json:"product_id" binding:"required"`
	HistoricalSales []int    `json:"historical_sales" binding:"required"` // 月次の販売実績
	Dates           []string `json:"dates" binding:"required"`            // YYYY-MM-DD
}

// PredictDemandResponse 需要予測結果
type PredictDemandResponse struct {
	NextMonthForecast int     `json:"next_month_forecast"`
	Confidence        float64 `json:"confidence"`
	Trend             string  `json:"trend"` // increasing, stable, decreasing
}

// トレンド方向
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)
