package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"allergen-guard/internal/core/related"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *related.Status        `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// Check 就緒檢查項目，例如資料庫連線
type Check func(ctx context.Context) error

// Handler 健康檢查處理器
type Handler struct {
	cfg    *config.Config
	queue  *related.Queue
	stats  func() map[string]interface{}
	checks map[string]Check
}

// NewHandler 創建處理器；queue 與 stats 可為 nil
func NewHandler(cfg *config.Config, queue *related.Queue, stats func() map[string]interface{}, checks map[string]Check) *Handler {
	return &Handler{cfg: cfg, queue: queue, stats: stats, checks: checks}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.cfg.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.GetQueueStatus()
	}
	if h.stats != nil {
		response.Cache = h.stats()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器，任一檢查失敗回傳 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			ready = false
			results[name] = err.Error()
			common.LogWarn("Readiness check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
