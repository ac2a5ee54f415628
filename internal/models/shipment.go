package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipment status vocabulary. MIAMI and FINALIZADO are only set by operators.
const (
	ShipmentStatusMiami     = "MIAMI"
	ShipmentStatusLeaving   = "SALIENDO"
	ShipmentStatusArriving  = "LLEGANDO"
	ShipmentStatusInCountry = "EN 🇦🇷"
	ShipmentStatusInBsAs    = "EN BSAS"
	ShipmentStatusArrived   = "ARRIBADO"
	ShipmentStatusDelivered = "ENTREGADO"
	ShipmentStatusClosed    = "FINALIZADO"
	ShipmentStatusInTransit = "EN_TRANSITO"
)

// Shipment: forwarder consolidation. ClientID is nil for stock shipments.
//
// ItemCount, CostTotal, PriceTotal, Profit and WeightItems are caches written
// by the aggregator; WeightFW and WeightCli are entered by operators.
type Shipment struct {
	ID             uint  `gorm:"primaryKey"`
	ShipmentNumber uint  `gorm:"uniqueIndex;not null"`
	ClientID       *uint `gorm:"index"`
	Client         *Client
	Forwarder      string     `gorm:"size:100"`
	Status         string     `gorm:"size:30;not null;index"`
	ManualStatus   *string    `gorm:"size:30"` // operator override, see shipments.Reconciler
	DateShipped    *time.Time `gorm:"index"`
	DateArrived    *time.Time `gorm:"index"`

	WeightFW  *decimal.Decimal `gorm:"type:decimal(12,3)"`
	WeightCli *decimal.Decimal `gorm:"type:decimal(12,3)"`

	ItemCount   int             `gorm:"not null;default:0"`
	CostTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	PriceTotal  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Profit      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	WeightItems decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`

	Notes     string `gorm:"size:1000"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
