package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status vocabulary. Logistics values mirror the shipment cascade table.
const (
	OrderStatusPending   = "PENDIENTE"
	OrderStatusMiami     = "MIAMI"
	OrderStatusLeaving   = "SALIENDO"
	OrderStatusArriving  = "LLEGANDO"
	OrderStatusInCountry = "EN 🇦🇷"
	OrderStatusDelivered = "ENTREGADO"
	OrderStatusCancelled = "CANCELADO"
)

// Order: client purchase order. TotalAmount is fixed at creation.
type Order struct {
	ID          uint `gorm:"primaryKey"`
	OrderNumber uint `gorm:"uniqueIndex;not null"`
	ClientID    uint `gorm:"index;not null"`
	Client      Client
	ShipmentID  *uint `gorm:"index"`
	Shipment    *Shipment
	Date        time.Time       `gorm:"index;not null"`
	Status      string          `gorm:"size:30;not null;default:PENDIENTE"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Notes       string          `gorm:"size:1000"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem: order line. Subtotal and Profit are computed once at creation.
type OrderItem struct {
	ID          uint `gorm:"primaryKey"`
	OrderID     uint `gorm:"index;not null"`
	ProductID   *uint `gorm:"index"`
	Product     *Product
	SupplierID  *uint `gorm:"index"`
	Supplier    *Supplier
	ShipmentID  *uint           `gorm:"index"`
	ProductName string          `gorm:"size:255"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null"` // UnitPrice * Quantity
	Profit      decimal.Decimal `gorm:"type:decimal(14,2);not null"` // (UnitPrice - UnitCost) * Quantity
	Status      string          `gorm:"size:30"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectiveShipmentID resolves the shipment an item travels in: its own
// shipment when set, otherwise the one of its order.
func (i OrderItem) EffectiveShipmentID(order Order) *uint {
	if i.ShipmentID != nil {
		return i.ShipmentID
	}
	return order.ShipmentID
}
