package shipments

import (
	"strings"
	"time"

	"cargo-backend/internal/models"
)

// Thresholds are the milestone delays of the automatic ladder.
type Thresholds struct {
	ShippedAfter   time.Duration // SALIENDO -> LLEGANDO
	DeliveredAfter time.Duration // EN 🇦🇷 -> ENTREGADO
}

var DefaultThresholds = Thresholds{
	ShippedAfter:   48 * time.Hour,
	DeliveredAfter: 72 * time.Hour,
}

var ladder = map[string]int{
	models.ShipmentStatusMiami:     0,
	models.ShipmentStatusLeaving:   1,
	models.ShipmentStatusArriving:  2,
	models.ShipmentStatusInCountry: 3,
	models.ShipmentStatusInBsAs:    3,
	models.ShipmentStatusArrived:   3,
	models.ShipmentStatusDelivered: 4,
	models.ShipmentStatusClosed:    5,
}

var orderStatusFor = map[string]string{
	models.ShipmentStatusMiami:     models.OrderStatusMiami,
	models.ShipmentStatusLeaving:   models.OrderStatusLeaving,
	models.ShipmentStatusArriving:  models.OrderStatusArriving,
	models.ShipmentStatusInCountry: models.OrderStatusInCountry,
	models.ShipmentStatusInBsAs:    models.OrderStatusInCountry,
	models.ShipmentStatusArrived:   models.OrderStatusInCountry,
	models.ShipmentStatusDelivered: models.OrderStatusDelivered,
	models.ShipmentStatusClosed:    models.OrderStatusDelivered,
}

func normalize(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// Rank returns the position of status on the ladder. Statuses outside the
// ladder (EN_TRANSITO, free text) report ok=false.
func Rank(status string) (rank int, ok bool) {
	rank, ok = ladder[normalize(status)]
	return rank, ok
}

// MapToOrderStatus translates a shipment status into the status its orders
// and items take. ok=false means the status does not cascade.
func MapToOrderStatus(shipmentStatus string) (string, bool) {
	s, ok := orderStatusFor[normalize(shipmentStatus)]
	return s, ok
}

// AutomaticTarget derives the status implied by the milestone dates alone.
// The arrival date wins over the shipping date.
func AutomaticTarget(shipped, arrived *time.Time, now time.Time, th Thresholds) (string, bool) {
	if arrived != nil {
		if now.Sub(*arrived) >= th.DeliveredAfter {
			return models.ShipmentStatusDelivered, true
		}
		return models.ShipmentStatusInCountry, true
	}
	if shipped != nil {
		if now.Sub(*shipped) >= th.ShippedAfter {
			return models.ShipmentStatusArriving, true
		}
		return models.ShipmentStatusLeaving, true
	}
	return "", false
}

// Resolution is the outcome of one reconciliation of a shipment's status.
type Resolution struct {
	Status      string
	ClearManual bool
}

// Resolve combines the stored status, the operator override and the automatic
// target. The override holds until the automatic target ranks above it; an
// override outside the ladder yields to any automatic target. Without an
// override the automatic target only ever moves the status up the ladder.
func Resolve(stored string, manual *string, auto string, hasAuto bool) Resolution {
	if manual != nil && *manual != "" {
		if !hasAuto || !dominates(auto, *manual) {
			return Resolution{Status: *manual}
		}
		// dominated: the override is dropped and the automatic rule applies
		if advances(auto, stored) {
			return Resolution{Status: auto, ClearManual: true}
		}
		return Resolution{Status: stored, ClearManual: true}
	}

	if hasAuto && advances(auto, stored) {
		return Resolution{Status: auto}
	}
	return Resolution{Status: stored}
}

func dominates(auto, manual string) bool {
	m, ok := Rank(manual)
	if !ok {
		return true
	}
	a, _ := Rank(auto)
	return a > m
}

func advances(auto, stored string) bool {
	s, ok := Rank(stored)
	if !ok {
		return true
	}
	a, _ := Rank(auto)
	return a > s
}
