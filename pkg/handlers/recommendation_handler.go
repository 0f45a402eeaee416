package handlers

import (
	"net/http"

	"nexus-ai-engine/pkg/models"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-gonic/gin"
)

// RecommendationHandler アップセル推薦ハンドラー
type RecommendationHandler struct {
	recommendationService *services.RecommendationService
}

// NewRecommendationHandler 新しい推薦ハンドラーを作成
func NewRecommendationHandler(recommendationService *services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService}
}

// RecommendUpsell カートの内容から一緒に購入されやすい商品を推薦
func (rh *RecommendationHandler) RecommendUpsell(c *gin.Context) {
	var req models.RecommendUpsellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := rh.recommendationService.Recommend(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
