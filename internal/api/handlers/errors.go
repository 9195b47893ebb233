// Package handlers HTTP 處理器
package handlers

import (
	"net/http"

	"allergen-guard/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError 依錯誤代碼輸出對應的狀態碼與錯誤結構
func writeError(c *gin.Context, err error) {
	status := common.StatusOf(err)
	code := common.CodeOf(err)
	if code == "" {
		if common.IsValidationError(err) {
			code = common.ErrCodeInvalidRequest
		} else {
			code = common.ErrCodeInternalError
		}
	}

	fields := []zap.Field{
		zap.String("code", code),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestid.Get(c)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗", fields...)
	} else {
		common.LogWarn("請求處理失敗", fields...)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, common.ErrorResponse{Code: code, Message: message})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, common.NewError(common.ErrCodeInvalidRequest, "invalid request format", http.StatusBadRequest, err))
}
