// Package safety 將供應商資料、使用者相關食品與偵測引擎串成各種檢查入口。
package safety

import (
	"context"
	"errors"
	"strings"
	"time"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/related"
	"allergen-guard/internal/core/source"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
)

// SourceCache 快速路徑命中時的 source 欄位
const SourceCache = "cache"

const (
	codeEmptyInput = common.ErrCodeEmptyInput
	codeNotFound   = common.ErrCodeNotFound

	fastPathLimit = 10
)

// Result 統一的檢查結果。Safe 為 nil 表示沒有可判斷的資料。
type Result struct {
	Found       bool            `json:"found"`
	Safe        *bool           `json:"safe"`
	Name        string          `json:"name"`
	Ingredients []string        `json:"ingredients"`
	Allergens   []allergen.Flag `json:"allergens"`
	Source      string          `json:"source,omitempty"`
	Message     string          `json:"message,omitempty"`
	Code        string          `json:"code,omitempty"`
	ID          string          `json:"id,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

// MealResult 餐點檢查結果，每道餐點各自判斷
type MealResult struct {
	Found   bool     `json:"found"`
	Meals   []Result `json:"meals"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// MealFilter 推薦餐點篩選條件
type MealFilter struct {
	Diet     string // all | veg | non-veg
	Category string // all 或供應商分類名稱
}

// FoodProvider 包裝食品來源
type FoodProvider interface {
	source.Source
	LookupBarcode(ctx context.Context, code string) (*source.Item, error)
}

// MealProvider 餐點來源
type MealProvider interface {
	source.Source
	ListAll(ctx context.Context) ([]source.Item, error)
}

// Service 檢查服務
type Service struct {
	engine   *allergen.Engine
	food     FoodProvider
	meals    MealProvider
	medicine source.Source
	related  related.Store
	syncer   *related.Syncer
}

// Deps 服務依賴
type Deps struct {
	Engine   *allergen.Engine
	Food     FoodProvider
	Meals    MealProvider
	Medicine source.Source
	Related  related.Store
	Syncer   *related.Syncer
}

// NewService 創建檢查服務
func NewService(d Deps) *Service {
	engine := d.Engine
	if engine == nil {
		engine = allergen.NewEngine(nil)
	}
	return &Service{
		engine:   engine,
		food:     d.Food,
		meals:    d.Meals,
		medicine: d.Medicine,
		related:  d.Related,
		syncer:   d.Syncer,
	}
}

func boolPtr(b bool) *bool { return &b }

func emptyResult(name, message string) *Result {
	return &Result{
		Name:        name,
		Ingredients: []string{},
		Allergens:   []allergen.Flag{},
		Message:     message,
		Code:        codeEmptyInput,
	}
}

func notFoundResult(name, message string) *Result {
	return &Result{
		Name:        name,
		Ingredients: []string{},
		Allergens:   []allergen.Flag{},
		Message:     message,
		Code:        codeNotFound,
	}
}

// evaluate 對單一品項執行偵測；沒有食材資料時視為查無資料而非安全
func (s *Service) evaluate(item source.Item, allergens []string, opts allergen.Options) *Result {
	if len(item.Ingredients) == 0 {
		r := notFoundResult(item.Name, "No ingredient data")
		r.Source = item.Source
		r.ID = item.ID
		return r
	}

	opts.Tags = item.Tags
	opts.TraceTags = item.TraceTags
	flags := s.engine.Detect(item.Ingredients, allergens, opts)

	return &Result{
		Found:       true,
		Safe:        boolPtr(allergen.IsSafe(flags)),
		Name:        item.Name,
		Ingredients: item.Ingredients,
		Allergens:   flags,
		Source:      item.Source,
		ID:          item.ID,
		Barcode:     item.Barcode,
		Thumbnail:   item.Thumbnail,
		Category:    item.Category,
		ImageURL:    item.ImageURL,
	}
}

// relatedTokens 讀取使用者相關食品快照；讀取失敗只降級，不中止檢查
func (s *Service) relatedTokens(ctx context.Context, userID string, allergens []string) map[string][]string {
	if s.related == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	tokens, err := related.Tokens(ctx, s.related, userID, allergens)
	if err != nil {
		common.LogWarn("讀取相關食品失敗，略過 RELATED 比對",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	return tokens
}

// recoverable NOT_FOUND 轉為結構化結果，其餘錯誤往上拋
func recoverable(kind, name string, err error) (*Result, error) {
	if source.IsNotFound(err) {
		msg := "No product found"
		var ce *common.CustomError
		if errors.As(err, &ce) && ce.Message != "" {
			msg = ce.Message
		}
		r := notFoundResult(name, msg)
		observe(kind, r)
		return r, nil
	}
	providerErrors.WithLabelValues(kind).Inc()
	return nil, err
}

// CheckFood 先查使用者相關食品快取（名稱子字串），未命中再查詢食品資料庫
func (s *Service) CheckFood(ctx context.Context, userID, query string, allergens []string) (*Result, error) {
	q := common.Norm(query)
	users := allergen.Clean(allergens)
	if q == "" {
		r := emptyResult(query, "Empty query")
		observe("food", r)
		return r, nil
	}
	if len(users) == 0 {
		r := emptyResult(query, "No allergens provided")
		observe("food", r)
		return r, nil
	}

	start := time.Now()
	opts := allergen.Options{Related: s.relatedTokens(ctx, userID, users)}

	if item, ok := s.fromRelatedCache(ctx, userID, q, query); ok {
		r := s.evaluate(item, users, opts)
		common.LogInfo("食品檢查完成",
			zap.String("query", q),
			zap.String("source", SourceCache),
			zap.Int("flags", len(r.Allergens)),
			zap.Duration("耗時", time.Since(start)),
		)
		observe("food", r)
		return r, nil
	}

	items, err := s.food.FetchIngredientsFor(ctx, query)
	if err != nil {
		return recoverable("food", query, err)
	}
	r := s.evaluate(items[0], users, opts)
	common.LogInfo("食品檢查完成",
		zap.String("query", q),
		zap.String("source", r.Source),
		zap.Int("flags", len(r.Allergens)),
		zap.Duration("耗時", time.Since(start)),
	)
	observe("food", r)
	return r, nil
}

// fromRelatedCache 取第一筆名稱相符且有食材文字的快取列
func (s *Service) fromRelatedCache(ctx context.Context, userID, q, fallbackName string) (source.Item, bool) {
	if s.related == nil || strings.TrimSpace(userID) == "" {
		return source.Item{}, false
	}
	rows, err := s.related.SearchByName(ctx, userID, q, fastPathLimit)
	if err != nil {
		common.LogWarn("相關食品快取查詢失敗", zap.String("query", q), zap.Error(err))
		return source.Item{}, false
	}
	for _, row := range rows {
		ings := allergen.FromText(row.IngredientsText)
		if len(ings) == 0 {
			continue
		}
		name := row.ProductName
		if name == "" {
			name = fallbackName
		}
		common.LogCacheHit("related_foods", q)
		return source.Item{Name: name, Ingredients: ings, Source: SourceCache}, true
	}
	common.LogCacheMiss("related_foods", q)
	return source.Item{}, false
}

// CheckBarcode 以條碼查詢單一商品
func (s *Service) CheckBarcode(ctx context.Context, userID, code string, allergens []string) (*Result, error) {
	code = strings.TrimSpace(code)
	users := allergen.Clean(allergens)
	if code == "" {
		r := emptyResult(code, "Empty barcode")
		observe("barcode", r)
		return r, nil
	}
	if len(users) == 0 {
		r := emptyResult(code, "No allergens provided")
		observe("barcode", r)
		return r, nil
	}

	item, err := s.food.LookupBarcode(ctx, code)
	if err != nil {
		return recoverable("barcode", code, err)
	}
	r := s.evaluate(*item, users, allergen.Options{Related: s.relatedTokens(ctx, userID, users)})
	observe("barcode", r)
	return r, nil
}

// CheckMeal 搜尋餐點並逐一判斷；查無餐點時 Found 為 false
func (s *Service) CheckMeal(ctx context.Context, query string, allergens []string) (*MealResult, error) {
	users := allergen.Clean(allergens)
	if common.Norm(query) == "" {
		checksTotal.WithLabelValues("meal", "empty_input").Inc()
		return &MealResult{Meals: []Result{}, Message: "Empty query", Code: codeEmptyInput}, nil
	}
	if len(users) == 0 {
		checksTotal.WithLabelValues("meal", "empty_input").Inc()
		return &MealResult{Meals: []Result{}, Message: "No allergens provided", Code: codeEmptyInput}, nil
	}

	items, err := s.meals.FetchIngredientsFor(ctx, query)
	if err != nil {
		providerErrors.WithLabelValues("meal").Inc()
		return nil, err
	}
	if len(items) == 0 {
		checksTotal.WithLabelValues("meal", "not_found").Inc()
		return &MealResult{Meals: []Result{}, Message: "No meals found", Code: codeNotFound}, nil
	}

	out := &MealResult{Found: true, Meals: make([]Result, 0, len(items))}
	for _, item := range items {
		r := s.evaluate(item, users, allergen.Options{})
		observe("meal", r)
		out.Meals = append(out.Meals, *r)
	}
	return out, nil
}

// CheckMedicine 解析藥名取得成分，並套用青黴素交叉過敏規則
func (s *Service) CheckMedicine(ctx context.Context, query string, allergens []string) (*Result, error) {
	users := allergen.Clean(allergens)
	if common.Norm(query) == "" {
		r := emptyResult(query, "Empty query")
		observe("medicine", r)
		return r, nil
	}
	if len(users) == 0 {
		r := emptyResult(query, "No allergens provided")
		observe("medicine", r)
		return r, nil
	}

	items, err := s.medicine.FetchIngredientsFor(ctx, query)
	if err != nil {
		return recoverable("medicine", query, err)
	}
	item := items[0]
	if item.Name == "" {
		item.Name = strings.TrimSpace(query)
	}
	r := s.evaluate(item, users, allergen.Options{CrossRules: []allergen.CrossRule{allergen.PenicillinRule}})
	if r.Safe != nil && *r.Safe {
		r.Message = "No allergenic ingredients found"
	}
	observe("medicine", r)
	return r, nil
}

// SafeMeals 推薦餐點：排除任何會被標記的餐點與沒有食材資料的餐點，再套用飲食與分類篩選
func (s *Service) SafeMeals(ctx context.Context, userID string, allergens []string, filter MealFilter) ([]source.Item, error) {
	users := allergen.Clean(allergens)
	items, err := s.meals.ListAll(ctx)
	if err != nil {
		providerErrors.WithLabelValues("recommendation").Inc()
		return nil, err
	}

	opts := allergen.Options{Related: s.relatedTokens(ctx, userID, users)}
	out := make([]source.Item, 0, len(items))
	for _, item := range items {
		if len(item.Ingredients) == 0 {
			continue
		}
		if len(users) > 0 && len(s.engine.Detect(item.Ingredients, users, opts)) > 0 {
			continue
		}
		if !matchDiet(item.Category, filter.Diet) || !matchCategory(item.Category, filter.Category) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

var nonVegCategories = map[string]struct{}{
	"beef":    {},
	"chicken": {},
	"lamb":    {},
	"pork":    {},
	"seafood": {},
	"goat":    {},
}

func matchDiet(category, diet string) bool {
	_, nonVeg := nonVegCategories[common.Norm(category)]
	switch common.Norm(diet) {
	case "veg":
		return !nonVeg
	case "non-veg":
		return nonVeg
	default:
		return true
	}
}

func matchCategory(category, want string) bool {
	w := common.Norm(want)
	if w == "" || w == "all" {
		return true
	}
	return common.Norm(category) == w
}

// SyncRelatedFoods 同步使用者某過敏原的相關食品
func (s *Service) SyncRelatedFoods(ctx context.Context, userID, allergenKey string) (*related.SyncResult, error) {
	return s.syncer.Sync(ctx, userID, allergenKey)
}

// RelatedCount 使用者某過敏原的相關食品數量
func (s *Service) RelatedCount(ctx context.Context, userID, allergenKey string) (int64, error) {
	return s.related.Count(ctx, userID, common.Norm(allergenKey))
}

// Detect 直接對食材列表偵測
func (s *Service) Detect(ingredients, allergens []string, opts allergen.Options) []allergen.Flag {
	return s.engine.Detect(ingredients, allergens, opts)
}
