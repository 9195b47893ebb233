// Package allergy 管理使用者登錄的過敏原
package allergy

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"allergen-guard/internal/core/related"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
)

// UserAllergy 使用者的一筆過敏原
type UserAllergy struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Allergen  string    `json:"allergen"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 過敏原持久層
type Store interface {
	Create(ctx context.Context, a *UserAllergy) error
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List 依建立順序列出
	List(ctx context.Context, userID string) ([]UserAllergy, error)
}

// Enqueuer 背景同步排程
type Enqueuer interface {
	Enqueue(ctx context.Context, job related.Job) error
}

// Service 過敏原服務
type Service struct {
	store Store
	queue Enqueuer
}

// NewService 創建服務；queue 可為 nil（不觸發同步）
func NewService(store Store, queue Enqueuer) *Service {
	return &Service{store: store, queue: queue}
}

// Add 新增過敏原並排入相關食品同步。同步排程失敗不影響新增結果。
func (s *Service) Add(ctx context.Context, userID, allergenName string) (*UserAllergy, error) {
	userID = strings.TrimSpace(userID)
	name := strings.TrimSpace(allergenName)
	if userID == "" || name == "" {
		return nil, common.EmptyInput("user id and allergen are required")
	}

	a := &UserAllergy{
		ID:        common.GenerateUUID(),
		UserID:    userID,
		Allergen:  name,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	if s.queue != nil {
		job := related.Job{UserID: userID, Allergen: common.Norm(name)}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			common.LogWarn("相關食品同步排程失敗",
				zap.String("user_id", userID),
				zap.String("allergen", job.Allergen),
				zap.Error(err),
			)
		}
	}
	return a, nil
}

// Delete 刪除過敏原；不存在時回傳 NOT_FOUND
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return common.NotFound("Allergy not found")
	}
	return nil
}

// List 列出使用者的過敏原
func (s *Service) List(ctx context.Context, userID string) ([]UserAllergy, error) {
	return s.store.List(ctx, userID)
}

// Keys 小寫並去重後的過敏原鍵
func (s *Service) Keys(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		if k := common.Norm(r.Allergen); k != "" {
			keys = append(keys, k)
		}
	}
	return common.Dedupe(keys), nil
}

// MemoryStore 記憶體實作
type MemoryStore struct {
	mu   sync.RWMutex
	seq  int64
	rows map[string]memRow
}

type memRow struct {
	seq int64
	UserAllergy
}

// NewMemoryStore 建立記憶體存放區
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]memRow)}
}

func (m *MemoryStore) Create(ctx context.Context, a *UserAllergy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.rows[a.ID] = memRow{seq: m.seq, UserAllergy: *a}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *MemoryStore) List(ctx context.Context, userID string) ([]UserAllergy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]memRow, 0)
	for _, r := range m.rows {
		if r.UserID == userID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]UserAllergy, len(matched))
	for i, r := range matched {
		out[i] = r.UserAllergy
	}
	return out, nil
}
