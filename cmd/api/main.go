package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"allergen-guard/internal/api"
	"allergen-guard/internal/api/handlers/health"
	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/cache"
	"allergen-guard/internal/core/related"
	"allergen-guard/internal/core/safety"
	"allergen-guard/internal/core/source"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/infrastructure/database"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 載入設定（內含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("db_dsn", config.MaskDSN(cfg.Database.DSN)),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// 初始化供應商回應快取
	respCache, err := cache.New(&cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if respCache != nil {
		defer respCache.Close()
	}

	// 資料庫
	db, err := database.Open(&cfg.Database)
	if err != nil {
		common.LogFatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	relatedStore := database.NewRelatedStore(db)
	allergyStore := database.NewAllergyStore(db)

	// 供應商
	foodSrc := source.NewFoodSource(&cfg.Providers, respCache)
	mealSrc := source.NewMealSource(&cfg.Providers, respCache)
	medicineSrc := source.NewMedicineSource(&cfg.Providers, respCache)

	// 相關食品同步與背景隊列
	syncer := related.NewSyncer(relatedStore, foodSrc, cfg.Providers.SyncPageSize)
	queue := related.NewQueue(&cfg.Queue, syncer, cfg.Server.RequestTimeout)
	queue.Start()

	safetySvc := safety.NewService(safety.Deps{
		Engine:   allergen.NewEngine(nil),
		Food:     foodSrc,
		Meals:    mealSrc,
		Medicine: medicineSrc,
		Related:  relatedStore,
		Syncer:   syncer,
	})
	allergySvc := allergy.NewService(allergyStore, queue)

	router, cleanup := api.SetupRouter(cfg, api.Dependencies{
		Safety:     safetySvc,
		Allergies:  allergySvc,
		Queue:      queue,
		CacheStats: cacheStats(respCache),
		Checks:     readinessChecks(db, respCache),
	})
	defer cleanup()

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 停止接受同步工作並等待進行中的工作完成
	queue.Close()

	common.LogInfo("Server exited")
}

func cacheStats(c cache.Cache) func() map[string]interface{} {
	m, ok := c.(*cache.CacheManager)
	if !ok {
		return nil
	}
	return m.GetStats
}

func readinessChecks(db *gorm.DB, c cache.Cache) map[string]health.Check {
	checks := map[string]health.Check{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if rc, ok := c.(*cache.RedisCache); ok {
		checks["redis"] = rc.Ping
	}
	return checks
}
