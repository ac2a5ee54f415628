package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCharge  TransactionType = "CARGO" // increases debt, amount > 0
	TransactionPayment TransactionType = "PAGO"  // decreases debt, amount <= 0
)

// Transaction: client ledger entry. Entries are never edited, only replaced
// by reference (see ledger.ReplaceEntriesForReference).
type Transaction struct {
	ID            uint `gorm:"primaryKey"`
	ClientID      uint `gorm:"index;not null"`
	Client        Client
	Type          TransactionType `gorm:"type:varchar(10);not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Date          time.Time       `gorm:"index;not null"`
	Reference     string          `gorm:"size:100;index"`
	Description   string          `gorm:"size:500"`
	PaymentMethod string          `gorm:"size:50"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
