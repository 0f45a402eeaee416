package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"nexus-ai-engine/pkg/apperrors"
	"nexus-ai-engine/pkg/forecast"
	"nexus-ai-engine/pkg/models"
)

const (
	// 予測する日数（翌月分）
	forecastHorizonDays = 30
	minHistoryPoints    = 3
	dateLayout          = "2006-01-02"
)

// DemandForecastService 需要予測サービス
type DemandForecastService struct {
	forecaster forecast.Forecaster
}

// NewDemandForecastService 新しい需要予測サービスを作成
func NewDemandForecastService(forecaster forecast.Forecaster) *DemandForecastService {
	return &DemandForecastService{forecaster: forecaster}
}

// buildObservations は販売実績と日付を検証し、観測値に変換する
func buildObservations(sales []int, dates []string) ([]forecast.Observation, error) {
	if len(sales) < minHistoryPoints {
		return nil, apperrors.Validation("Need at least 3 months of historical data for forecasting")
	}
	if len(sales) != len(dates) {
		return nil, apperrors.Validation("Number of sales values must match number of dates")
	}

	obs := make([]forecast.Observation, len(sales))
	for i, s := range sales {
		d, err := time.Parse(dateLayout, strings.TrimSpace(dates[i]))
		if err != nil {
			return nil, apperrors.Validation("Invalid date %q at position %d: expected YYYY-MM-DD", dates[i], i)
		}
		obs[i] = forecast.Observation{Date: d, Value: float64(s)}
	}
	return obs, nil
}

// Predict 翌月の需要を予測し、トレンドと信頼度を算出する
func (dfs *DemandForecastService) Predict(ctx context.Context, req models.PredictDemandRequest) (*models.PredictDemandResponse, error) {
	obs, err := buildObservations(req.HistoricalSales, req.Dates)
	if err != nil {
		return nil, err
	}

	preds, err := dfs.forecaster.Forecast(ctx, obs, forecastHorizonDays)
	if err != nil {
		slog.WarnContext(ctx, "demand forecast failed", "tenant_id", req.TenantID, "product_id", req.ProductID, "error", err)
		return nil, apperrors.Upstream(fmt.Sprintf("Forecasting error: %s", err.Error()), err)
	}
	if len(preds) < forecastHorizonDays {
		return nil, apperrors.Upstream(fmt.Sprintf("Forecasting error: expected %d predictions, got %d", forecastHorizonDays, len(preds)), nil)
	}
	tail := preds[len(preds)-forecastHorizonDays:]

	var sum, upper, lower float64
	for _, p := range tail {
		sum += p.Yhat
		upper += p.YhatUpper
		lower += p.YhatLower
	}
	nextMonth := int(sum) // 0方向への切り捨て
	if nextMonth < 0 {
		nextMonth = 0
	}

	uncertainty := (upper - lower) / float64(len(tail))
	return &models.PredictDemandResponse{
		NextMonthForecast: nextMonth,
		Confidence:        confidenceScore(uncertainty, nextMonth),
		Trend:             classifyTrend(nextMonth, recentAverage(req.HistoricalSales)),
	}, nil
}

// recentAverage 直近3件の平均
func recentAverage(sales []int) float64 {
	recent := sales
	if len(recent) > minHistoryPoints {
		recent = recent[len(recent)-minHistoryPoints:]
	}
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, s := range recent {
		sum += float64(s)
	}
	return sum / float64(len(recent))
}

// classifyTrend 予測値と直近平均を比較してトレンドを判定
func classifyTrend(forecastValue int, recentAvg float64) string {
	f := float64(forecastValue)
	switch {
	case f > recentAvg:
		return models.TrendIncreasing
	case f < recentAvg*0.9:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// confidenceScore 予測区間の幅が狭いほど高い信頼度を返す（0.5〜0.95、小数2桁）
func confidenceScore(uncertainty float64, forecastValue int) float64 {
	c := 1 - uncertainty/math.Max(1, float64(forecastValue))
	c = math.Max(0.5, math.Min(0.95, c))
	return math.Round(c*100) / 100
}

// ParseSalesRows はヘッダー行付きの表データから日付と販売数の列を取り出します。
// 空行は読み飛ばします。
func ParseSalesRows(rows [][]string) ([]int, []string, error) {
	if len(rows) < 2 {
		return nil, nil, apperrors.Validation("File must contain a header row and at least one data row")
	}

	header := rows[0]
	dateCol := findIndex(header, "date", "dates", "ds", "日付")
	salesCol := findIndex(header, "sales", "quantity", "y", "販売数", "数量")

	var missing []string
	if dateCol == -1 {
		missing = append(missing, "date")
	}
	if salesCol == -1 {
		missing = append(missing, "sales")
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.Validation("Required columns not found: %s (header: %v)", strings.Join(missing, ", "), header)
	}

	var sales []int
	var dates []string
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		if dateCol >= len(row) || salesCol >= len(row) {
			return nil, nil, apperrors.Validation("Row %d is missing the date or sales column", i+2)
		}
		raw := strings.ReplaceAll(strings.TrimSpace(row[salesCol]), ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, nil, apperrors.Validation("Row %d has a non-numeric sales value %q", i+2, row[salesCol])
		}
		sales = append(sales, int(math.Round(v)))
		dates = append(dates, normalizeDate(row[dateCol]))
	}
	return sales, dates, nil
}

// normalizeDate は "2024/01/31" のような表記を YYYY-MM-DD に揃える
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "2006/01/02", "2006/1/2", "2006-1-2", "01-02-06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	return s
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// findIndex はヘッダーから候補名のいずれかに一致する最初の列を探す
func findIndex(slice []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range slice {
			if strings.EqualFold(strings.TrimSpace(item), candidate) {
				return i
			}
		}
	}
	return -1
}
