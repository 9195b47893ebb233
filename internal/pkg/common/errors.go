package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 讓 errors.Is / errors.As 可以穿透到原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓包裝過的錯誤仍能匹配預定義錯誤
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError 表示驗證錯誤
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// CodeOf 取出錯誤鏈中第一個 CustomError 的代碼
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsCode 檢查錯誤鏈中是否有指定代碼
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// StatusOf 取出錯誤對應的 HTTP 狀態碼
func StatusOf(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Status != 0 {
		return ce.Status
	}
	if IsValidationError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeEmptyInput       = "EMPTY_INPUT"        // 400
	ErrCodeNotFound         = "NOT_FOUND"          // 404
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED" // 405
	ErrCodeRequestTimeout   = "REQUEST_TIMEOUT"    // 408
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError       = "INTERNAL_ERROR"       // 500
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE" // 503
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"  // 503
	ErrCodeGatewayTimeout      = "GATEWAY_TIMEOUT"      // 504
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest   = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrEmptyInput       = NewError(ErrCodeEmptyInput, "empty input", http.StatusBadRequest, nil)
	ErrNotFound         = NewError(ErrCodeNotFound, "not found", http.StatusNotFound, nil)
	ErrMethodNotAllowed = NewError(ErrCodeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed, nil)
	ErrRequestTimeout   = NewError(ErrCodeRequestTimeout, "request timeout", http.StatusRequestTimeout, nil)
	ErrTooManyRequests  = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError       = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrProviderUnavailable = NewError(ErrCodeProviderUnavailable, "provider unavailable", http.StatusServiceUnavailable, nil)
	ErrServiceUnavailable  = NewError(ErrCodeServiceUnavailable, "service unavailable", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout      = NewError(ErrCodeGatewayTimeout, "gateway timeout", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrCacheFull     = NewError("CACHE_FULL", "cache is full", http.StatusServiceUnavailable, nil)
	ErrCacheDisabled = NewError("CACHE_DISABLED", "cache is disabled", http.StatusServiceUnavailable, nil)
	ErrCacheMiss     = NewError("CACHE_MISS", "cache miss", http.StatusNotFound, nil)
	ErrQueueFull     = NewError("QUEUE_FULL", "sync queue is full", http.StatusServiceUnavailable, nil)
	ErrQueueClosed   = NewError("QUEUE_CLOSED", "sync queue is closed", http.StatusServiceUnavailable, nil)
)

// NotFound 建立帶訊息的 NOT_FOUND 錯誤
func NotFound(message string) *CustomError {
	return NewError(ErrCodeNotFound, message, http.StatusNotFound, nil)
}

// EmptyInput 建立帶訊息的 EMPTY_INPUT 錯誤
func EmptyInput(message string) *CustomError {
	return NewError(ErrCodeEmptyInput, message, http.StatusBadRequest, nil)
}

// ProviderUnavailable 包裝上游供應商的網路或解析錯誤
func ProviderUnavailable(provider string, err error) *CustomError {
	return NewError(ErrCodeProviderUnavailable, provider+" unavailable", http.StatusServiceUnavailable, err)
}
