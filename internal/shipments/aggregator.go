package shipments

import (
	"context"
	"errors"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EffectiveItems restricts an order_items query to the items travelling in
// shipmentID: items assigned to it directly plus unassigned items whose order
// is assigned to it. Aggregation and the status cascade both go through here.
func EffectiveItems(shipmentID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		ordersOf := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Order{}).
			Select("id").
			Where("shipment_id = ?", shipmentID)

		return db.Where(
			"order_items.shipment_id = ? OR (order_items.shipment_id IS NULL AND order_items.order_id IN (?))",
			shipmentID, ordersOf,
		)
	}
}

// Totals is the derived summary cached on a shipment.
type Totals struct {
	ItemCount  int
	CostTotal  decimal.Decimal
	PriceTotal decimal.Decimal
	Profit     decimal.Decimal
	Weight     decimal.Decimal
	// ClientID is set only when the orders attached to the shipment and the
	// orders owning items assigned to it all share one client.
	ClientID *uint
}

type Aggregator struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAggregator(db *gorm.DB, log *zap.Logger) *Aggregator {
	return &Aggregator{db: db, log: log.Named("aggregator")}
}

type itemRow struct {
	Quantity  int
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
	Profit    decimal.Decimal
	Weight    decimal.NullDecimal
	ClientID  uint
}

// Compute sums the effective items of a shipment without writing anything.
func (a *Aggregator) Compute(ctx context.Context, shipmentID uint) (Totals, error) {
	var rows []itemRow
	err := a.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.quantity, order_items.unit_price, order_items.unit_cost, order_items.profit, " +
			"products.weight AS weight, orders.client_id AS client_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("LEFT JOIN products ON products.id = order_items.product_id").
		Scopes(EffectiveItems(shipmentID)).
		Scan(&rows).Error
	if err != nil {
		return Totals{}, err
	}

	t := Totals{
		CostTotal:  decimal.Zero,
		PriceTotal: decimal.Zero,
		Profit:     decimal.Zero,
		Weight:     decimal.Zero,
	}
	clients := make(map[uint]struct{})
	for _, r := range rows {
		qty := decimal.NewFromInt(int64(r.Quantity))
		t.ItemCount += r.Quantity
		t.CostTotal = t.CostTotal.Add(r.UnitCost.Mul(qty))
		t.PriceTotal = t.PriceTotal.Add(r.UnitPrice.Mul(qty))
		t.Profit = t.Profit.Add(r.Profit)
		if r.Weight.Valid {
			t.Weight = t.Weight.Add(r.Weight.Decimal.Mul(qty))
		}
		clients[r.ClientID] = struct{}{}
	}

	// orders attached to the shipment count even when their items travel elsewhere
	var attached []uint
	if err := a.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("shipment_id = ?", shipmentID).
		Distinct().
		Pluck("client_id", &attached).Error; err != nil {
		return Totals{}, err
	}
	for _, id := range attached {
		clients[id] = struct{}{}
	}

	if len(clients) == 1 {
		for id := range clients {
			t.ClientID = &id
		}
	}
	return t, nil
}

// Recompute refreshes the cached totals of a shipment. Operator-entered
// weights are never touched; the client is only overwritten when the items
// belong to a single client.
func (a *Aggregator) Recompute(ctx context.Context, shipmentID uint) (Totals, error) {
	var shipment models.Shipment
	err := a.db.WithContext(ctx).Select("id").First(&shipment, shipmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Totals{}, apperr.NotFound("Envío", shipmentID)
	}
	if err != nil {
		return Totals{}, a.fail(shipmentID, err)
	}

	t, err := a.Compute(ctx, shipmentID)
	if err != nil {
		return Totals{}, a.fail(shipmentID, err)
	}

	updates := map[string]any{
		"item_count":   t.ItemCount,
		"cost_total":   t.CostTotal,
		"price_total":  t.PriceTotal,
		"profit":       t.Profit,
		"weight_items": t.Weight,
	}
	if t.ClientID != nil {
		updates["client_id"] = *t.ClientID
	}

	if err := a.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", shipmentID).Updates(updates).Error; err != nil {
		return Totals{}, a.fail(shipmentID, err)
	}

	a.log.Debug("shipment totals recomputed",
		zap.Uint("shipment_id", shipmentID),
		zap.Int("item_count", t.ItemCount),
		zap.String("price_total", t.PriceTotal.String()))
	return t, nil
}

// RecomputeAll refreshes every distinct shipment in ids, skipping nils. It is
// used after writes that already committed, so failures are logged only.
func (a *Aggregator) RecomputeAll(ctx context.Context, ids ...*uint) {
	seen := make(map[uint]bool)
	for _, id := range ids {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if _, err := a.Recompute(ctx, *id); err != nil {
			a.log.Warn("shipment recompute failed", zap.Uint("shipment_id", *id), zap.Error(err))
		}
	}
}

func (a *Aggregator) fail(shipmentID uint, err error) error {
	a.log.Error("shipment recompute failed", zap.Uint("shipment_id", shipmentID), zap.Error(err))
	return apperr.Persistence("recompute_shipment", "", err)
}
