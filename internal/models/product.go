package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint   `gorm:"primaryKey"`
	SKU         string `gorm:"size:100;uniqueIndex;not null"`
	Name        string `gorm:"size:200;not null"`
	Description string `gorm:"size:500"`
	ColorGrade  string `gorm:"size:50"`
	// kg per unit, nil when unknown
	Weight    *decimal.Decimal `gorm:"type:decimal(12,3)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
