package handlers

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"nexus-ai-engine/pkg/apperrors"
	"nexus-ai-engine/pkg/models"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// アップロードファイルの上限
const maxUploadSize = 10 << 20

// DemandForecastHandler 需要予測ハンドラー
type DemandForecastHandler struct {
	demandForecastService *services.DemandForecastService
}

// NewDemandForecastHandler 新しい需要予測ハンドラーを作成
func NewDemandForecastHandler(demandForecastService *services.DemandForecastService) *DemandForecastHandler {
	return &DemandForecastHandler{demandForecastService: demandForecastService}
}

// PredictDemand 販売実績から翌月の需要を予測
func (dfh *DemandForecastHandler) PredictDemand(c *gin.Context) {
	var req models.PredictDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	dfh.predict(c, req)
}

// PredictDemandFromFile アップロードされた .xlsx / .csv の販売実績から翌月の需要を予測
func (dfh *DemandForecastHandler) PredictDemandFromFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	tenantID := strings.TrimSpace(c.PostForm("tenant_id"))
	productID := strings.TrimSpace(c.PostForm("product_id"))
	if tenantID == "" || productID == "" {
		respondError(c, apperrors.Validation("tenant_id and product_id are required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperrors.Validation("file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, apperrors.Validation("failed to open uploaded file"))
		return
	}
	defer file.Close()

	var rows [][]string
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(file)
		if err != nil {
			respondError(c, apperrors.Validation("failed to read Excel file"))
			return
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			respondError(c, apperrors.Validation("failed to read rows from the first sheet"))
			return
		}
	case ".csv":
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		rows, err = r.ReadAll()
		if err != nil {
			respondError(c, apperrors.Validation("failed to parse CSV file"))
			return
		}
	default:
		respondError(c, apperrors.Validation("unsupported file format: upload a .xlsx or .csv file"))
		return
	}

	sales, dates, err := services.ParseSalesRows(rows)
	if err != nil {
		respondError(c, err)
		return
	}
	slog.DebugContext(c.Request.Context(), "sales file parsed", "file", fileHeader.Filename, "rows", len(sales))

	dfh.predict(c, models.PredictDemandRequest{
		TenantID:        tenantID,
		ProductID:       productID,
		HistoricalSales: sales,
		Dates:           dates,
	})
}

func (dfh *DemandForecastHandler) predict(c *gin.Context, req models.PredictDemandRequest) {
	resp, err := dfh.demandForecastService.Predict(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
