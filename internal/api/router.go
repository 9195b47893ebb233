package api

import (
	"time"

	"allergen-guard/internal/api/handlers"
	"allergen-guard/internal/api/handlers/health"
	"allergen-guard/internal/api/middleware"
	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/related"
	"allergen-guard/internal/core/safety"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies 路由需要的服務
type Dependencies struct {
	Safety     *safety.Service
	Allergies  *allergy.Service
	Queue      *related.Queue // 可為 nil，非同步同步改為同步執行
	CacheStats func() map[string]interface{}
	Checks     map[string]health.Check
}

// SetupRouter 設置路由；回傳的 cleanup 釋放中間件持有的資源
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, func()) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Metrics())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg, deps.Queue, deps.CacheStats, deps.Checks)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cleanup := func() {}

	// API 路由組
	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	if cfg.DedupWindow > 0 {
		dedup := middleware.NewDeduplicator(cfg.DedupWindow)
		api.Use(dedup.Handler())
		cleanup = dedup.Close
	}

	checkHandler := handlers.NewCheckHandler(deps.Safety, deps.Allergies)
	var enqueuer allergy.Enqueuer
	if deps.Queue != nil {
		enqueuer = deps.Queue
	}
	allergyHandler := handlers.NewAllergyHandler(deps.Allergies, deps.Safety, enqueuer)

	{
		checkGroup := api.Group("/check")
		checkGroup.POST("/food", checkHandler.CheckFood)
		checkGroup.POST("/barcode", checkHandler.CheckBarcode)
		checkGroup.POST("/meal", checkHandler.CheckMeal)
		checkGroup.POST("/medicine", checkHandler.CheckMedicine)

		api.POST("/detect", checkHandler.Detect)

		users := api.Group("/users/:user_id")
		users.GET("/allergies", allergyHandler.List)
		users.POST("/allergies", allergyHandler.Add)
		users.DELETE("/allergies/:id", allergyHandler.Delete)
		users.POST("/allergies/:id/sync", allergyHandler.Sync)
		users.GET("/allergies/:id/related/count", allergyHandler.RelatedCount)
		users.GET("/recommendations/meals", checkHandler.RecommendMeals)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("queue_enabled", deps.Queue != nil),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, cleanup
}
