package handlers

import (
	"net/http"

	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/related"
	"allergen-guard/internal/core/safety"
	"allergen-guard/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AddAllergyRequest 新增過敏原請求
type AddAllergyRequest struct {
	Allergen string `json:"allergen"`
}

// AllergyHandler 使用者過敏原與相關食品處理器
type AllergyHandler struct {
	allergies *allergy.Service
	safety    *safety.Service
	queue     allergy.Enqueuer
}

// NewAllergyHandler 創建處理器；queue 為 nil 時非同步同步改為同步執行
func NewAllergyHandler(a *allergy.Service, s *safety.Service, q allergy.Enqueuer) *AllergyHandler {
	return &AllergyHandler{allergies: a, safety: s, queue: q}
}

// List GET /users/:user_id/allergies
func (h *AllergyHandler) List(c *gin.Context) {
	rows, err := h.allergies.List(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allergies": rows})
}

// Add POST /users/:user_id/allergies
func (h *AllergyHandler) Add(c *gin.Context) {
	var req AddAllergyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.allergies.Add(c.Request.Context(), c.Param("user_id"), req.Allergen)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Delete DELETE /users/:user_id/allergies/:id
func (h *AllergyHandler) Delete(c *gin.Context) {
	if err := h.allergies.Delete(c.Request.Context(), c.Param("user_id"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync POST /users/:user_id/allergies/:allergen/sync[?async=true]
// 路由參數與刪除共用同一個位置，因此名稱為 id，內容是過敏原
func (h *AllergyHandler) Sync(c *gin.Context) {
	userID := c.Param("user_id")
	key := common.Norm(c.Param("id"))

	if c.Query("async") == "true" && h.queue != nil {
		if userID == "" || key == "" {
			writeError(c, common.EmptyInput("user id and allergen are required"))
			return
		}
		if err := h.queue.Enqueue(c.Request.Context(), related.Job{UserID: userID, Allergen: key}); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"status":   "queued",
			"user_id":  userID,
			"allergen": key,
		})
		return
	}

	res, err := h.safety.SyncRelatedFoods(c.Request.Context(), userID, key)
	if err != nil {
		writeError(c, err)
		return
	}
	common.LogDebug("Related foods synced via API",
		zap.String("user_id", userID),
		zap.String("allergen", key),
		zap.Int("inserted", res.Inserted),
	)
	c.JSON(http.StatusOK, res)
}

// RelatedCount GET /users/:user_id/allergies/:allergen/related/count
func (h *AllergyHandler) RelatedCount(c *gin.Context) {
	userID := c.Param("user_id")
	key := common.Norm(c.Param("id"))
	n, err := h.safety.RelatedCount(c.Request.Context(), userID, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"allergen": key,
		"count":    n,
	})
}
