package related

import (
	"context"
	"strings"
	"time"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/source"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductSearcher 同步所需的供應商能力
type ProductSearcher interface {
	SearchProducts(ctx context.Context, terms string, pageSize int) ([]source.Product, error)
}

// Syncer 以供應商搜尋結果整批取代使用者的相關食品
type Syncer struct {
	store    Store
	searcher ProductSearcher
	pageSize int
}

// NewSyncer 建立同步器
func NewSyncer(store Store, searcher ProductSearcher, pageSize int) *Syncer {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Syncer{store: store, searcher: searcher, pageSize: pageSize}
}

// SyncResult 同步結果
type SyncResult struct {
	UserID   string `json:"user_id"`
	Allergen string `json:"allergen"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
}

// Sync 先搜尋，再刪除舊資料並新增新資料。
// 搜尋失敗時不動既有資料並回傳錯誤；刪除後新增失敗只記錄警告，快取留空直到下次同步。
func (s *Syncer) Sync(ctx context.Context, userID, allergenKey string) (*SyncResult, error) {
	key := common.Norm(allergenKey)
	if strings.TrimSpace(userID) == "" || key == "" {
		return nil, common.EmptyInput("user id and allergen are required")
	}

	start := time.Now()
	products, err := s.searcher.SearchProducts(ctx, key, s.pageSize)
	if err != nil {
		return nil, err
	}

	rows := make([]Food, 0, len(products))
	for i := range products {
		p := &products[i]
		name := p.DisplayName()
		text := p.RawIngredients()
		if name == "" && strings.TrimSpace(text) == "" {
			continue
		}
		rows = append(rows, Food{
			UserID:          userID,
			Allergen:        key,
			ProductName:     name,
			IngredientsText: text,
			Source:          source.ProviderOpenFoodFacts,
		})
	}

	result := &SyncResult{UserID: userID, Allergen: key, Fetched: len(products)}

	if err := s.store.DeleteFor(ctx, userID, key); err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		if err := s.store.Insert(ctx, rows); err != nil {
			common.LogWarn("相關食品寫入失敗，快取暫時為空",
				zap.String("user_id", userID),
				zap.String("allergen", key),
				zap.Error(err),
			)
			return result, nil
		}
	}
	result.Inserted = len(rows)

	common.LogInfo("相關食品同步完成",
		zap.String("user_id", userID),
		zap.String("allergen", key),
		zap.Int("fetched", len(products)),
		zap.Int("inserted", len(rows)),
		zap.Duration("耗時", time.Since(start)),
	)
	return result, nil
}

// TokensFor 將一組相關食品轉成比對 token（名稱 + 食材文字），去重
func TokensFor(foods []Food) []string {
	var tokens []string
	for _, f := range foods {
		if name := common.Norm(f.ProductName); name != "" {
			tokens = append(tokens, name)
		}
		tokens = append(tokens, allergen.FromText(f.IngredientsText)...)
	}
	return common.Dedupe(tokens)
}

// Tokens 建立每個過敏原的 token 快照，作為偵測時的唯讀輸入
func Tokens(ctx context.Context, store Store, userID string, allergens []string) (map[string][]string, error) {
	keys := common.Dedupe(allergen.Clean(allergens))
	lists := make([][]string, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			foods, err := store.List(gctx, userID, key)
			if err != nil {
				return err
			}
			lists[i] = TokensFor(foods)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(keys))
	for i, key := range keys {
		if len(lists[i]) > 0 {
			out[key] = lists[i]
		}
	}
	return out, nil
}
