package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"nexus-ai-engine/pkg/models"
)

const (
	maxRecommendations = 5
	popularCount       = 3
	defaultAssociation = "default"
)

// Association は「一緒に購入されやすい」商品とその基本信頼度
type Association struct {
	ProductID  string
	Confidence float64
	Reason     string
}

// AssociationTable は商品IDごとの関連商品表です。作成後は変更されません。
// 登録のない商品には "default" の関連商品を使います。
type AssociationTable struct {
	entries map[string][]Association
}

// NewAssociationTable は entries のコピーから関連商品表を作成します。
func NewAssociationTable(entries map[string][]Association) AssociationTable {
	copied := make(map[string][]Association, len(entries))
	for k, v := range entries {
		copied[k] = append([]Association(nil), v...)
	}
	return AssociationTable{entries: copied}
}

// DefaultAssociationTable 学習済みモデルがない場合の関連商品表
func DefaultAssociationTable() AssociationTable {
	return NewAssociationTable(map[string][]Association{
		defaultAssociation: {
			{ProductID: "recommended-1", Confidence: 0.75, Reason: "Popular combination"},
			{ProductID: "recommended-2", Confidence: 0.70, Reason: "Frequently bought together"},
			{ProductID: "recommended-3", Confidence: 0.65, Reason: "Similar customers bought"},
		},
	})
}

// Lookup productID の関連商品を返す
func (t AssociationTable) Lookup(productID string) []Association {
	if assoc, ok := t.entries[productID]; ok {
		return assoc
	}
	return t.entries[defaultAssociation]
}

// Jitter は基本信頼度に加える揺らぎを返します。
type Jitter func() float64

// UniformJitter は [-0.05, 0.05] の一様乱数を返す Jitter
func UniformJitter() Jitter {
	return func() float64 {
		return rand.Float64()*0.1 - 0.05
	}
}

// NoJitter 揺らぎなし
func NoJitter() float64 { return 0 }

// RecommendationService カート内容からアップセル商品を推薦します。
type RecommendationService struct {
	table  AssociationTable
	jitter Jitter
}

// NewRecommendationService 新しい推薦サービスを作成
func NewRecommendationService(table AssociationTable, jitter Jitter) *RecommendationService {
	if jitter == nil {
		jitter = UniformJitter()
	}
	return &RecommendationService{table: table, jitter: jitter}
}

// Recommend カートに含まれない関連商品を信頼度の高い順に最大5件返す
func (rs *RecommendationService) Recommend(_ context.Context, req models.RecommendUpsellRequest) (*models.RecommendUpsellResponse, error) {
	if len(req.CurrentCartItems) == 0 {
		return &models.RecommendUpsellResponse{Recommendations: popularProducts()}, nil
	}

	seen := make(map[string]struct{}, len(req.CurrentCartItems))
	for _, item := range req.CurrentCartItems {
		seen[item] = struct{}{}
	}

	var recs []models.UpsellRecommendation
	for _, item := range req.CurrentCartItems {
		for _, assoc := range rs.table.Lookup(item) {
			if _, ok := seen[assoc.ProductID]; ok {
				continue
			}
			recs = append(recs, models.UpsellRecommendation{
				ProductID:  assoc.ProductID,
				Confidence: round2(clamp01(assoc.Confidence + rs.jitter())),
				Reason:     assoc.Reason,
			})
			seen[assoc.ProductID] = struct{}{}
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Confidence > recs[j].Confidence })
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	if len(recs) == 0 {
		recs = []models.UpsellRecommendation{{
			ProductID:  "complementary-product",
			Confidence: 0.60,
			Reason:     "Complementary product",
		}}
	}
	return &models.RecommendUpsellResponse{Recommendations: recs}, nil
}

// popularProducts 空のカート向けの人気商品
func popularProducts() []models.UpsellRecommendation {
	out := make([]models.UpsellRecommendation, 0, popularCount)
	for i := 0; i < popularCount; i++ {
		out = append(out, models.UpsellRecommendation{
			ProductID:  fmt.Sprintf("popular-%d", i),
			Confidence: round2(0.8 - float64(i)*0.1),
			Reason:     "Trending product",
		})
	}
	return out
}

// clamp01 は信頼度を [0, 1] に収める
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
