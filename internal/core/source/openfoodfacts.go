package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/cache"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
)

// Product Open Food Facts 商品（只取用到的欄位）
type Product struct {
	Code              string           `json:"code"`
	ProductName       string           `json:"product_name"`
	ProductNameEN     string           `json:"product_name_en"`
	IngredientsText   string           `json:"ingredients_text"`
	IngredientsTextEN string           `json:"ingredients_text_en"`
	Ingredients       []allergen.Entry `json:"ingredients"`
	AllergensTags     []string         `json:"allergens_tags"`
	TracesTags        []string         `json:"traces_tags"`
	ImageFrontURL     string           `json:"image_front_url"`
	ImageSmallURL     string           `json:"image_small_url"`
}

// DisplayName 商品名稱，缺少時回傳空字串
func (p *Product) DisplayName() string {
	if strings.TrimSpace(p.ProductName) != "" {
		return strings.TrimSpace(p.ProductName)
	}
	return strings.TrimSpace(p.ProductNameEN)
}

// RawIngredients 原始食材文字
func (p *Product) RawIngredients() string {
	if p.IngredientsText != "" {
		return p.IngredientsText
	}
	return p.IngredientsTextEN
}

// IngredientTokens 優先使用結構化食材列表，否則切分食材文字
func (p *Product) IngredientTokens() []string {
	if len(p.Ingredients) > 0 {
		if list := allergen.FromEntries(p.Ingredients); len(list) > 0 {
			return list
		}
	}
	return allergen.FromText(p.RawIngredients())
}

// toItem 轉為統一品項
func (p *Product) toItem(fallbackName string) Item {
	name := p.DisplayName()
	if name == "" {
		name = fallbackName
	}
	image := p.ImageFrontURL
	if image == "" {
		image = p.ImageSmallURL
	}
	return Item{
		Name:        name,
		Ingredients: p.IngredientTokens(),
		Tags:        append([]string(nil), p.AllergensTags...),
		TraceTags:   append([]string(nil), p.TracesTags...),
		Source:      ProviderOpenFoodFacts,
		ID:          p.Code,
		Barcode:     p.Code,
		ImageURL:    image,
	}
}

type offSearchResponse struct {
	Products []Product `json:"products"`
}

type offProductResponse struct {
	Status  int      `json:"status"`
	Product *Product `json:"product"`
}

// FoodSource 包裝食品資料庫的文字搜尋與條碼查詢
type FoodSource struct {
	http     *httpClient
	pageSize int
}

// NewFoodSource 創建食品來源
func NewFoodSource(cfg *config.ProvidersConfig, c cache.Cache) *FoodSource {
	pageSize := cfg.SearchPageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	return &FoodSource{
		http:     newHTTPClient(ProviderOpenFoodFacts, cfg.OpenFoodFactsURL, cfg, c),
		pageSize: pageSize,
	}
}

// Name 供應商名稱
func (s *FoodSource) Name() string { return ProviderOpenFoodFacts }

// SearchProducts 文字搜尋，回傳最多 pageSize 筆商品
func (s *FoodSource) SearchProducts(ctx context.Context, terms string, pageSize int) ([]Product, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	params := url.Values{}
	params.Set("search_terms", terms)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(pageSize))

	var resp offSearchResponse
	if err := s.http.getJSON(ctx, "/cgi/search.pl", params, &resp); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Products, nil
}

// FetchIngredientsFor 搜尋並挑選第一個有結構化食材列表的商品，否則取第一筆
func (s *FoodSource) FetchIngredientsFor(ctx context.Context, query string) ([]Item, error) {
	products, err := s.SearchProducts(ctx, query, s.pageSize)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, common.NotFound("No product found")
	}

	chosen := &products[0]
	for i := range products {
		if len(products[i].Ingredients) > 0 {
			chosen = &products[i]
			break
		}
	}

	common.LogDebug("已選擇商品",
		zap.String("query", query),
		zap.String("product", chosen.DisplayName()),
		zap.Int("candidates", len(products)),
	)
	return []Item{chosen.toItem(query)}, nil
}

// LookupBarcode 以條碼取得單一商品
func (s *FoodSource) LookupBarcode(ctx context.Context, code string) (*Item, error) {
	code = strings.TrimSpace(code)
	var resp offProductResponse
	if err := s.http.getJSON(ctx, "/api/v0/product/"+url.PathEscape(code)+".json", nil, &resp); err != nil {
		if IsNotFound(err) {
			return nil, common.NotFound("No product found")
		}
		return nil, err
	}
	if resp.Status != 1 || resp.Product == nil {
		return nil, common.NotFound("No product found")
	}
	item := resp.Product.toItem(code)
	if item.Barcode == "" {
		item.Barcode = code
		item.ID = code
	}
	return &item, nil
}
