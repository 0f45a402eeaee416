package handler

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	config "nexus-ai-engine/configs"
	"nexus-ai-engine/internal/server"

	"github.com/gin-gonic/gin"
)

var (
	app     http.Handler
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (http.Handler, error) {
	once.Do(func() {
		// 環境変数はプラットフォームの設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		logger := server.NewLogger(cfg, os.Stderr)
		slog.SetDefault(logger)

		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		deps, err := server.NewDependencies(cfg, logger)
		if err != nil {
			initErr = err
			logger.Error("failed to initialize serverless function", "error", err)
			return
		}
		app = server.NewRouter(cfg, deps)
		logger.Info("serverless function initialized", "openai_configured", deps.LLM.Configured())
	})
	return app, initErr
}

// Handler はサーバーレス関数のエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := setupApp()
	if err != nil {
		http.Error(w, "service initialization failed", http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}
