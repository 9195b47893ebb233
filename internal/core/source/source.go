// Package source 封裝三個外部資料供應商，將原始資料轉成統一的食材列表。
package source

import (
	"context"

	"allergen-guard/internal/pkg/common"
)

// 供應商名稱，同時作為結果的 source 欄位
const (
	ProviderOpenFoodFacts = "openfoodfacts"
	ProviderMealDB        = "mealdb"
	ProviderRxNav         = "rxnav"
)

// Item 供應商回傳的單一品項（商品、餐點或藥品）
type Item struct {
	Name        string   `json:"name"`
	Ingredients []string `json:"ingredients"`
	Tags        []string `json:"tags,omitempty"`
	TraceTags   []string `json:"trace_tags,omitempty"`
	Source      string   `json:"source"`
	ID          string   `json:"id,omitempty"`
	Barcode     string   `json:"barcode,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Category    string   `json:"category,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// Source 所有供應商共用的能力介面
type Source interface {
	// Name 供應商名稱
	Name() string

	// FetchIngredientsFor 依查詢字串取得品項。
	// 查無資料時依供應商慣例回傳 NOT_FOUND 錯誤或空列表；
	// 網路或解析失敗回傳 PROVIDER_UNAVAILABLE。
	FetchIngredientsFor(ctx context.Context, query string) ([]Item, error)
}

// IsNotFound 檢查是否為查無資料
func IsNotFound(err error) bool {
	return common.IsCode(err, common.ErrCodeNotFound)
}

// IsUnavailable 檢查是否為供應商無法使用
func IsUnavailable(err error) bool {
	return common.IsCode(err, common.ErrCodeProviderUnavailable)
}

var (
	_ Source = (*FoodSource)(nil)
	_ Source = (*MealSource)(nil)
	_ Source = (*MedicineSource)(nil)
)
