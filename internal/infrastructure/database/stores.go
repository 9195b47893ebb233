package database

import (
	"context"
	"strings"

	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/related"

	"gorm.io/gorm"
)

// insertBatchSize 批次新增的單批筆數
const insertBatchSize = 100

// RelatedStore gorm 版相關食品存放區
type RelatedStore struct {
	db *gorm.DB
}

// NewRelatedStore 建立存放區
func NewRelatedStore(db *gorm.DB) *RelatedStore {
	return &RelatedStore{db: db}
}

var _ related.Store = (*RelatedStore)(nil)

func (s *RelatedStore) DeleteFor(ctx context.Context, userID, allergen string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND allergen = ?", userID, allergen).
		Delete(&RelatedFood{}).Error
}

func (s *RelatedStore) Insert(ctx context.Context, foods []related.Food) error {
	if len(foods) == 0 {
		return nil
	}
	rows := make([]RelatedFood, 0, len(foods))
	for _, f := range foods {
		rows = append(rows, RelatedFood{
			UserID:          f.UserID,
			Allergen:        f.Allergen,
			ProductName:     f.ProductName,
			IngredientsText: f.IngredientsText,
			Source:          f.Source,
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error
}

func (s *RelatedStore) List(ctx context.Context, userID, allergen string) ([]related.Food, error) {
	var rows []RelatedFood
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND allergen = ?", userID, allergen).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toFoods(rows), nil
}

func (s *RelatedStore) SearchByName(ctx context.Context, userID, query string, limit int) ([]related.Food, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(product_name) LIKE ? ESCAPE '\\'", userID, "%"+escapeLike(strings.ToLower(strings.TrimSpace(query)))+"%").
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []RelatedFood
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toFoods(rows), nil
}

func (s *RelatedStore) Count(ctx context.Context, userID, allergen string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&RelatedFood{}).
		Where("user_id = ? AND allergen = ?", userID, allergen).
		Count(&n).Error
	return n, err
}

func toFoods(rows []RelatedFood) []related.Food {
	out := make([]related.Food, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// likeEscaper 跳脫 LIKE 萬用字元，查詢字串只做字面比對
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// AllergyStore gorm 版過敏原存放區
type AllergyStore struct {
	db *gorm.DB
}

// NewAllergyStore 建立存放區
func NewAllergyStore(db *gorm.DB) *AllergyStore {
	return &AllergyStore{db: db}
}

var _ allergy.Store = (*AllergyStore)(nil)

func (s *AllergyStore) Create(ctx context.Context, a *allergy.UserAllergy) error {
	row := Allergy{
		ID:        a.ID,
		UserID:    a.UserID,
		Allergen:  a.Allergen,
		CreatedAt: a.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *AllergyStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Allergy{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *AllergyStore) List(ctx context.Context, userID string) ([]allergy.UserAllergy, error) {
	var rows []Allergy
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]allergy.UserAllergy, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
