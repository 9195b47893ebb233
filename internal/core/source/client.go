package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"allergen-guard/internal/core/cache"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// httpClient 供應商共用的 JSON GET 客戶端，可選擇掛上回應快取
type httpClient struct {
	provider string
	baseURL  string
	client   *resty.Client
	cache    cache.Cache
}

// newHTTPClient 建立 resty 客戶端
func newHTTPClient(provider, baseURL string, cfg *config.ProvidersConfig, c cache.Cache) *httpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)

	return &httpClient{
		provider: provider,
		baseURL:  baseURL,
		client:   rc,
		cache:    c,
	}
}

// cacheKey 以完整 URL 作為快取鍵，url.Values 會排序參數
func (h *httpClient) cacheKey(path string, params url.Values) string {
	key := h.baseURL + path
	if len(params) > 0 {
		key += "?" + params.Encode()
	}
	return key
}

// getJSON 發送 GET 並將回應解析到 out。
// 404 回傳 NOT_FOUND；其他非 2xx、網路錯誤與解析錯誤皆為 PROVIDER_UNAVAILABLE。
func (h *httpClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	key := h.cacheKey(path, params)

	if h.cache != nil {
		if body, err := h.cache.Get(ctx, key); err == nil {
			if err := common.ParseJSONBytes(body, out); err == nil {
				return nil
			}
			common.LogWarn("快取內容無法解析，改為重新請求", zap.String("provider", h.provider))
		} else if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("快取讀取失敗", zap.String("provider", h.provider), zap.Error(err))
		}
	}

	start := time.Now()
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		common.LogProviderCall(h.provider, path, time.Since(start), err)
		return common.ProviderUnavailable(h.provider, fmt.Errorf("request %s: %w", path, err))
	}

	if resp.StatusCode() == http.StatusNotFound {
		common.LogProviderCall(h.provider, path, time.Since(start), nil)
		return common.NotFound(h.provider + ": not found")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		err := fmt.Errorf("%s returned status %d", path, resp.StatusCode())
		common.LogProviderCall(h.provider, path, time.Since(start), err)
		return common.ProviderUnavailable(h.provider, err)
	}
	common.LogProviderCall(h.provider, path, time.Since(start), nil)

	body := resp.Body()
	if err := common.ParseJSONBytes(body, out); err != nil {
		return common.ProviderUnavailable(h.provider, fmt.Errorf("parse %s: %w", path, err))
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, body); err != nil {
			common.LogDebug("快取寫入失敗", zap.String("provider", h.provider), zap.Error(err))
		}
	}
	return nil
}
