// Package sequence hands out dense, human-facing numbers (order and shipment
// numbers). The increment is a single UPDATE on the counter row, so inside a
// transaction concurrent callers serialize on the row lock instead of racing
// on MAX()+1.
package sequence

import (
	"fmt"

	"cargo-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter names a sequence and the column it numbers. The column is only read
// once, to seed the counter when its row does not exist yet.
type Counter struct {
	Name   string
	Table  string
	Column string
}

var (
	OrderNumbers    = Counter{Name: "order_number", Table: "orders", Column: "order_number"}
	ShipmentNumbers = Counter{Name: "shipment_number", Table: "shipments", Column: "shipment_number"}
)

// Next increments c and returns the new value. Pass the transaction that
// inserts the numbered row so a rollback also rolls back the increment.
func Next(db *gorm.DB, c Counter) (uint, error) {
	res := bump(db, c)
	if res.Error != nil {
		return 0, fmt.Errorf("sequence %s: %w", c.Name, res.Error)
	}

	if res.RowsAffected == 0 {
		if err := seed(db, c); err != nil {
			return 0, err
		}
		if err := bump(db, c).Error; err != nil {
			return 0, fmt.Errorf("sequence %s: %w", c.Name, err)
		}
	}

	var seq models.Sequence
	if err := db.First(&seq, "name = ?", c.Name).Error; err != nil {
		return 0, fmt.Errorf("sequence %s: %w", c.Name, err)
	}
	return seq.Value, nil
}

func bump(db *gorm.DB, c Counter) *gorm.DB {
	return db.Model(&models.Sequence{}).
		Where("name = ?", c.Name).
		UpdateColumn("value", gorm.Expr("value + ?", 1))
}

// seed creates the counter row starting at the highest number already used.
func seed(db *gorm.DB, c Counter) error {
	var current uint
	if err := db.Table(c.Table).Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", c.Column)).Scan(&current).Error; err != nil {
		return fmt.Errorf("sequence %s seed: %w", c.Name, err)
	}

	row := models.Sequence{Name: c.Name, Value: current}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("sequence %s seed: %w", c.Name, err)
	}
	return nil
}
