package models

import "time"

// Client: importing customer. Balance is never stored, see ledger.BalanceFor.
type Client struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:200;not null;index"`
	DocumentID string `gorm:"size:50"` // CUIT/DNI
	Email      string `gorm:"size:100"`
	Phone      string `gorm:"size:50"`
	Address    string `gorm:"size:255"`
	Notes      string `gorm:"size:500"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
