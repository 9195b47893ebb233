package source

import (
	"context"
	"fmt"
	"net/url"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/cache"
	"allergen-guard/internal/infrastructure/config"
)

// mealSlots 供應商固定的食材欄位數
const mealSlots = 20

type mealSearchResponse struct {
	Meals []map[string]interface{} `json:"meals"`
}

// Meal 解碼後的餐點，食材欄位已展開成一般切片
type Meal struct {
	ID          string
	Name        string
	Thumbnail   string
	Category    string
	Ingredients []string
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// decodeMeal 在邊界上把 strIngredient1..20 轉成序列
func decodeMeal(raw map[string]interface{}) Meal {
	slots := make([]string, 0, mealSlots)
	for i := 1; i <= mealSlots; i++ {
		slots = append(slots, stringField(raw, fmt.Sprintf("strIngredient%d", i)))
	}
	return Meal{
		ID:          stringField(raw, "idMeal"),
		Name:        stringField(raw, "strMeal"),
		Thumbnail:   stringField(raw, "strMealThumb"),
		Category:    stringField(raw, "strCategory"),
		Ingredients: allergen.FromSlots(slots),
	}
}

func (m Meal) toItem() Item {
	return Item{
		Name:        m.Name,
		Ingredients: m.Ingredients,
		Source:      ProviderMealDB,
		ID:          m.ID,
		Thumbnail:   m.Thumbnail,
		Category:    m.Category,
	}
}

// MealSource 食譜資料來源，不提供過敏原標籤
type MealSource struct {
	http *httpClient
}

// NewMealSource 創建餐點來源
func NewMealSource(cfg *config.ProvidersConfig, c cache.Cache) *MealSource {
	return &MealSource{http: newHTTPClient(ProviderMealDB, cfg.MealDBURL, cfg, c)}
}

// Name 供應商名稱
func (s *MealSource) Name() string { return ProviderMealDB }

// SearchMeals 依名稱搜尋；空字串回傳供應商預設列表
func (s *MealSource) SearchMeals(ctx context.Context, query string) ([]Meal, error) {
	params := url.Values{}
	params.Set("s", query)

	var resp mealSearchResponse
	if err := s.http.getJSON(ctx, "/search.php", params, &resp); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	meals := make([]Meal, 0, len(resp.Meals))
	for _, raw := range resp.Meals {
		if raw == nil {
			continue
		}
		meals = append(meals, decodeMeal(raw))
	}
	return meals, nil
}

// FetchIngredientsFor 查無餐點時回傳空列表而非錯誤
func (s *MealSource) FetchIngredientsFor(ctx context.Context, query string) ([]Item, error) {
	meals, err := s.SearchMeals(ctx, query)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(meals))
	for _, m := range meals {
		items = append(items, m.toItem())
	}
	return items, nil
}

// ListAll 取得預設餐點列表，推薦功能使用
func (s *MealSource) ListAll(ctx context.Context) ([]Item, error) {
	return s.FetchIngredientsFor(ctx, "")
}
