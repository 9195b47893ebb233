// Package related 管理使用者的「相關食品」快取：依過敏原同步供應商商品，
// 並把商品名稱與食材文字作為額外的比對 token。
package related

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Food 一筆相關食品快取
type Food struct {
	ID              uint      `json:"id"`
	UserID          string    `json:"user_id"`
	Allergen        string    `json:"allergen"`
	ProductName     string    `json:"product_name"`
	IngredientsText string    `json:"ingredients_text"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store 相關食品持久層。DeleteFor 與 Insert 分開呼叫，不保證原子性。
type Store interface {
	DeleteFor(ctx context.Context, userID, allergen string) error
	Insert(ctx context.Context, foods []Food) error
	List(ctx context.Context, userID, allergen string) ([]Food, error)
	// SearchByName 以商品名稱子字串（不分大小寫）搜尋使用者所有相關食品
	SearchByName(ctx context.Context, userID, query string, limit int) ([]Food, error)
	Count(ctx context.Context, userID, allergen string) (int64, error)
}

// MemoryStore 記憶體實作，供測試與本地開發使用
type MemoryStore struct {
	mu     sync.RWMutex
	nextID uint
	rows   []Food
}

// NewMemoryStore 建立記憶體存放區
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// DeleteFor 刪除 (user, allergen) 的所有列
func (m *MemoryStore) DeleteFor(ctx context.Context, userID, allergen string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.UserID == userID && r.Allergen == allergen {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return nil
}

// Insert 批次新增
func (m *MemoryStore) Insert(ctx context.Context, foods []Food) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, f := range foods {
		m.nextID++
		f.ID = m.nextID
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		m.rows = append(m.rows, f)
	}
	return nil
}

// List 列出 (user, allergen) 的所有列
func (m *MemoryStore) List(ctx context.Context, userID, allergen string) ([]Food, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Food
	for _, r := range m.rows {
		if r.UserID == userID && r.Allergen == allergen {
			out = append(out, r)
		}
	}
	return out, nil
}

// SearchByName 名稱子字串搜尋，依 ID 排序
func (m *MemoryStore) SearchByName(ctx context.Context, userID, query string, limit int) ([]Food, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []Food
	for _, r := range m.rows {
		if r.UserID != userID || !strings.Contains(strings.ToLower(r.ProductName), q) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count 計算 (user, allergen) 的列數
func (m *MemoryStore) Count(ctx context.Context, userID, allergen string) (int64, error) {
	rows, _ := m.List(ctx, userID, allergen)
	return int64(len(rows)), nil
}
