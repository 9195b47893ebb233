package database

import (
	"time"

	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/related"
)

// Allergy 使用者過敏原資料表
type Allergy struct {
	ID        string    `gorm:"size:36;primaryKey"`
	UserID    string    `gorm:"size:64;not null;index"`
	Allergen  string    `gorm:"size:100;not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (Allergy) TableName() string {
	return "allergies"
}

func (a Allergy) toDomain() allergy.UserAllergy {
	return allergy.UserAllergy{
		ID:        a.ID,
		UserID:    a.UserID,
		Allergen:  a.Allergen,
		CreatedAt: a.CreatedAt,
	}
}

// RelatedFood 相關食品快取資料表
type RelatedFood struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          string `gorm:"size:64;not null;index:idx_related_user_allergen"`
	Allergen        string `gorm:"size:100;not null;index:idx_related_user_allergen"`
	ProductName     string `gorm:"size:512"`
	IngredientsText string `gorm:"type:text"`
	Source          string `gorm:"size:32"`
	CreatedAt       time.Time
}

func (RelatedFood) TableName() string {
	return "related_foods"
}

func (r RelatedFood) toDomain() related.Food {
	return related.Food{
		ID:              r.ID,
		UserID:          r.UserID,
		Allergen:        r.Allergen,
		ProductName:     r.ProductName,
		IngredientsText: r.IngredientsText,
		Source:          r.Source,
		CreatedAt:       r.CreatedAt,
	}
}
