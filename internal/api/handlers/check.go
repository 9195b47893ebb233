package handlers

import (
	"context"
	"net/http"
	"strings"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/safety"
	"allergen-guard/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// CheckRequest 食品、餐點與藥品檢查請求；未提供 allergens 時使用者登錄的過敏原
type CheckRequest struct {
	UserID    string   `json:"user_id"`
	Query     string   `json:"query"`
	Allergens []string `json:"allergens,omitempty"`
}

// BarcodeRequest 條碼檢查請求
type BarcodeRequest struct {
	UserID    string   `json:"user_id"`
	Barcode   string   `json:"barcode"`
	Allergens []string `json:"allergens,omitempty"`
}

// DetectRequest 直接偵測請求
type DetectRequest struct {
	Ingredients []string            `json:"ingredients"`
	Allergens   []string            `json:"allergens"`
	Tags        []string            `json:"tags,omitempty"`
	TraceTags   []string            `json:"trace_tags,omitempty"`
	Related     map[string][]string `json:"related,omitempty"`
}

// DetectResponse 直接偵測結果。Safe 為 nil 表示沒有可判斷的資料。
type DetectResponse struct {
	Found     bool            `json:"found"`
	Safe      *bool           `json:"safe"`
	Allergens []allergen.Flag `json:"allergens"`
	Flagged   []string        `json:"flagged"`
	Message   string          `json:"message,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// CheckHandler 安全檢查處理器
type CheckHandler struct {
	safety    *safety.Service
	allergies *allergy.Service
}

// NewCheckHandler 創建處理器
func NewCheckHandler(s *safety.Service, a *allergy.Service) *CheckHandler {
	return &CheckHandler{safety: s, allergies: a}
}

// resolveAllergens 請求未帶過敏原時讀取使用者登錄的過敏原
func (h *CheckHandler) resolveAllergens(ctx context.Context, userID string, given []string) ([]string, error) {
	if len(given) > 0 || h.allergies == nil || strings.TrimSpace(userID) == "" {
		return given, nil
	}
	return h.allergies.Keys(ctx, userID)
}

// CheckFood POST /check/food
func (h *CheckHandler) CheckFood(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	allergens, err := h.resolveAllergens(c.Request.Context(), req.UserID, req.Allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.safety.CheckFood(c.Request.Context(), req.UserID, req.Query, allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckBarcode POST /check/barcode
func (h *CheckHandler) CheckBarcode(c *gin.Context) {
	var req BarcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	allergens, err := h.resolveAllergens(c.Request.Context(), req.UserID, req.Allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.safety.CheckBarcode(c.Request.Context(), req.UserID, req.Barcode, allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckMeal POST /check/meal
func (h *CheckHandler) CheckMeal(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	allergens, err := h.resolveAllergens(c.Request.Context(), req.UserID, req.Allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.safety.CheckMeal(c.Request.Context(), req.Query, allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckMedicine POST /check/medicine
func (h *CheckHandler) CheckMedicine(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	allergens, err := h.resolveAllergens(c.Request.Context(), req.UserID, req.Allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.safety.CheckMedicine(c.Request.Context(), req.Query, allergens)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Detect POST /detect
func (h *CheckHandler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(allergen.Clean(req.Allergens)) == 0 {
		c.JSON(http.StatusOK, DetectResponse{
			Allergens: []allergen.Flag{},
			Flagged:   []string{},
			Message:   "No allergens provided",
			Code:      common.ErrCodeEmptyInput,
		})
		return
	}
	if len(allergen.Clean(req.Ingredients)) == 0 {
		c.JSON(http.StatusOK, DetectResponse{
			Allergens: []allergen.Flag{},
			Flagged:   []string{},
			Message:   "No ingredient data",
			Code:      common.ErrCodeNotFound,
		})
		return
	}

	flags := h.safety.Detect(req.Ingredients, req.Allergens, allergen.Options{
		Tags:      req.Tags,
		TraceTags: req.TraceTags,
		Related:   req.Related,
	})
	safe := allergen.IsSafe(flags)
	c.JSON(http.StatusOK, DetectResponse{
		Found:     true,
		Safe:      &safe,
		Allergens: flags,
		Flagged:   allergen.Allergens(flags),
	})
}

// RecommendMeals GET /users/:user_id/recommendations/meals?diet=&category=
func (h *CheckHandler) RecommendMeals(c *gin.Context) {
	userID := c.Param("user_id")
	allergens, err := h.resolveAllergens(c.Request.Context(), userID, c.QueryArray("allergen"))
	if err != nil {
		writeError(c, err)
		return
	}
	meals, err := h.safety.SafeMeals(c.Request.Context(), userID, allergens, safety.MealFilter{
		Diet:     c.DefaultQuery("diet", "all"),
		Category: c.DefaultQuery("category", "all"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(meals),
		"meals": meals,
	})
}
