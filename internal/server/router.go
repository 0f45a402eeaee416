// Package server はルーターと依存関係の組み立てを提供します。
// cmd/server（常駐サーバー）と api（サーバーレス関数）の両方から使われます。
package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	config "nexus-ai-engine/configs"
	"nexus-ai-engine/pkg/forecast"
	"nexus-ai-engine/pkg/handlers"
	"nexus-ai-engine/pkg/llm"
	"nexus-ai-engine/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies 外部コラボレーターと差し替え可能なデータ
type Dependencies struct {
	LLM         *llm.Client
	Forecaster  forecast.Forecaster
	Suggestions services.SuggestionTable
	Jitter      services.Jitter
	Logger      *slog.Logger
}

// NewDependencies は設定から本番用の依存関係を作成します。
func NewDependencies(cfg *config.Config, logger *slog.Logger) (Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if err != nil {
		return Dependencies{}, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	suggestions := services.DefaultSuggestionTable()
	if cfg.SuggestionsFile != "" {
		file, err := config.LoadSuggestions(cfg.SuggestionsFile)
		if err != nil {
			return Dependencies{}, err
		}
		rules := make([]services.SuggestionRule, 0, len(file.Pages))
		for _, p := range file.Pages {
			rules = append(rules, services.SuggestionRule{Page: p.Page, Suggestions: p.Suggestions})
		}
		suggestions = services.NewSuggestionTable(rules, file.Default)
		logger.Info("suggestion table loaded", "file", cfg.SuggestionsFile, "rules", len(rules))
	}

	return Dependencies{
		LLM:         client,
		Forecaster:  forecast.NewAdditiveModel(forecast.DefaultConfig()),
		Suggestions: suggestions,
		Jitter:      services.UniformJitter(),
		Logger:      logger,
	}, nil
}

// NewRouter はミドルウェアとすべてのエンドポイントを登録したルーターを作成します。
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()

	if deps.LLM == nil {
		deps.LLM = llm.NewClient(nil)
	}
	if deps.Forecaster == nil {
		deps.Forecaster = forecast.NewAdditiveModel(forecast.DefaultConfig())
	}
	if deps.Suggestions.Empty() {
		deps.Suggestions = services.DefaultSuggestionTable()
	}

	// サービスの初期化
	monitoringService := services.NewMonitoringService(deps.Logger)
	chatService := services.NewChatService(deps.LLM, cfg.OpenAIChatModel, deps.Suggestions)
	demandForecastService := services.NewDemandForecastService(deps.Forecaster)
	invoiceService := services.NewInvoiceService(deps.LLM, cfg.OpenAIVisionModel)
	recommendationService := services.NewRecommendationService(services.DefaultAssociationTable(), deps.Jitter)

	// ハンドラーの初期化
	healthHandler := handlers.NewHealthHandler(cfg.Environment, deps.LLM.Configured)
	chatHandler := handlers.NewChatHandler(chatService)
	demandForecastHandler := handlers.NewDemandForecastHandler(demandForecastService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService)

	// ミドルウェアの登録
	r.Use(services.RequestIDMiddleware())
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(handlers.Recovery())
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = config.DefaultAllowedOrigins()
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", services.RequestIDHeader},
		ExposeHeaders:    []string{services.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", monitoringService.MetricsHandler())

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	{
		v1.POST("/chat", chatHandler.Chat)
		v1.POST("/predict-demand", demandForecastHandler.PredictDemand)
		v1.POST("/predict-demand/upload", demandForecastHandler.PredictDemandFromFile)
		v1.POST("/parse-invoice", invoiceHandler.ParseInvoice)
		v1.POST("/recommend-upsell", recommendationHandler.RecommendUpsell)
	}

	return r
}

// NewLogger 本番環境では JSON、それ以外ではテキスト形式のロガーを作成
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "nexus-ai-engine", "environment", cfg.Environment)
}
