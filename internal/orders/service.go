// Package orders creates client orders together with their ledger charge and
// keeps the shipments they travel in up to date.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/clock"
	"cargo-backend/internal/ledger"
	"cargo-backend/internal/models"
	"cargo-backend/internal/sequence"
	"cargo-backend/internal/shipments"
	"cargo-backend/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChargeReference is the ledger reference of an order's charge.
func ChargeReference(orderNumber uint) string {
	return fmt.Sprintf("Order #%d", orderNumber)
}

func chargeDescription(orderNumber uint) string {
	return fmt.Sprintf("Pedido #%d", orderNumber)
}

type Service struct {
	db         *gorm.DB
	clock      clock.Clock
	ledger     *ledger.Service
	aggregator *shipments.Aggregator
	log        *zap.Logger
}

func NewService(db *gorm.DB, clk clock.Clock, l *ledger.Service, agg *shipments.Aggregator, log *zap.Logger) *Service {
	return &Service{db: db, clock: clk, ledger: l, aggregator: agg, log: log.Named("orders")}
}

type ItemInput struct {
	ProductID      *uint           `json:"product_id"`
	SupplierID     *uint           `json:"supplier_id"`
	ShipmentNumber *uint           `json:"shipment_number"`
	ProductName    string          `json:"product_name" validate:"max=255"`
	Quantity       int             `json:"quantity" validate:"gt=0"`
	UnitPrice      decimal.Decimal `json:"unit_price" validate:"gte=0"`
	UnitCost       decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

type CreateInput struct {
	ClientID uint        `json:"client_id" validate:"required"`
	Date     time.Time   `json:"date"`
	Items    []ItemInput `json:"items" validate:"min=1,dive"`
	Notes    string      `json:"notes" validate:"max=1000"`
}

// Create writes the order, its items and its charge in one transaction. The
// charge is skipped for a zero total. Shipments the items travel in are
// recomputed after commit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, in.ClientID); err != nil {
		return nil, err
	}

	shipmentIDs, err := s.resolveShipmentNumbers(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	order := models.Order{
		ClientID: in.ClientID,
		Date:     date,
		Status:   models.OrderStatusPending,
		Notes:    strings.TrimSpace(in.Notes),
	}
	total := decimal.Zero
	for _, it := range in.Items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal := it.UnitPrice.Mul(qty)
		total = total.Add(subtotal)

		var shipmentID *uint
		if it.ShipmentNumber != nil {
			shipmentID = shipmentIDs[*it.ShipmentNumber]
		}

		order.Items = append(order.Items, models.OrderItem{
			ProductID:   it.ProductID,
			SupplierID:  it.SupplierID,
			ShipmentID:  shipmentID,
			ProductName: strings.TrimSpace(it.ProductName),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			UnitCost:    it.UnitCost,
			Subtotal:    subtotal,
			Profit:      it.UnitPrice.Sub(it.UnitCost).Mul(qty),
			Status:      models.OrderStatusPending,
		})
	}
	order.TotalAmount = total

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := sequence.Next(tx, sequence.OrderNumbers)
		if err != nil {
			return err
		}
		order.OrderNumber = n

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if total.IsZero() {
			return nil
		}
		_, err = s.ledger.WithTx(tx).RecordCharge(ctx, ledger.Charge{
			ClientID:    order.ClientID,
			Amount:      total,
			Date:        date,
			Reference:   ChargeReference(n),
			Description: chargeDescription(n),
		})
		return err
	})
	if err != nil {
		return nil, s.fail("create_order", err)
	}

	s.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("order_number", order.OrderNumber),
		zap.Uint("client_id", order.ClientID),
		zap.String("total", total.String()),
		zap.Int("items", len(order.Items)))

	s.aggregator.RecomputeAll(ctx, travelsIn(&order)...)
	return &order, nil
}

// ShipmentAssignment changes an order's shipment when Set. A nil ID detaches
// the order.
type ShipmentAssignment struct {
	Set bool
	ID  *uint
}

// UpdateStatus sets the order status and optionally moves the order to
// another shipment. Both the new and the previous shipment are recomputed.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, status string, assign ShipmentAssignment) (before, after *models.Order, err error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, nil, apperr.Validation("status", "El estado es obligatorio")
	}

	current, err := s.find(ctx, orderID, false)
	if err != nil {
		return nil, nil, err
	}
	prior := *current

	updates := map[string]any{"status": status}
	if assign.Set {
		if assign.ID != nil {
			if err := s.requireShipment(ctx, *assign.ID); err != nil {
				return nil, nil, err
			}
		}
		updates["shipment_id"] = assign.ID
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
		return nil, nil, s.fail("update_order_status", err)
	}

	next := *current
	next.Status = status
	if assign.Set {
		next.ShipmentID = assign.ID
		s.aggregator.RecomputeAll(ctx, assign.ID, prior.ShipmentID)
	}
	return &prior, &next, nil
}

// ResyncCharge recomputes the order total from its items and rewrites its
// ledger charge.
func (s *Service) ResyncCharge(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.find(ctx, orderID, true)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, it := range order.Items {
		total = total.Add(it.Subtotal)
	}

	var entries []models.Transaction
	if total.IsPositive() {
		entries = append(entries, models.Transaction{
			ClientID:    order.ClientID,
			Type:        models.TransactionCharge,
			Amount:      total,
			Date:        order.Date,
			Reference:   ChargeReference(order.OrderNumber),
			Description: chargeDescription(order.OrderNumber),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("total_amount", total).Error; err != nil {
			return err
		}
		return s.ledger.WithTx(tx).ReplaceEntriesForReference(ctx, ChargeReference(order.OrderNumber), entries)
	})
	if err != nil {
		return nil, s.fail("resync_charge", err)
	}
	order.TotalAmount = total

	s.aggregator.RecomputeAll(ctx, travelsIn(order)...)
	return order, nil
}

// Get returns the order with its client and items.
func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	return s.find(ctx, id, true)
}

// Delete removes the order, its items and its ledger charge, then recomputes
// the shipments it travelled in.
func (s *Service) Delete(ctx context.Context, id uint) (*models.Order, error) {
	order, err := s.find(ctx, id, true)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Order{}, order.ID).Error; err != nil {
			return err
		}
		return s.ledger.WithTx(tx).ReplaceEntriesForReference(ctx, ChargeReference(order.OrderNumber), nil)
	})
	if err != nil {
		return nil, s.fail("delete_order", err)
	}

	s.log.Info("order deleted", zap.Uint("order_id", order.ID), zap.Uint("order_number", order.OrderNumber))
	s.aggregator.RecomputeAll(ctx, travelsIn(order)...)
	return order, nil
}

// travelsIn lists the shipments the order and its items travel in.
func travelsIn(o *models.Order) []*uint {
	ids := []*uint{o.ShipmentID}
	for _, it := range o.Items {
		ids = append(ids, it.EffectiveShipmentID(*o))
	}
	return ids
}

func (s *Service) find(ctx context.Context, id uint, withItems bool) (*models.Order, error) {
	q := s.db.WithContext(ctx)
	if withItems {
		q = q.Preload("Client").Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}

	var order models.Order
	err := q.First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Pedido", id)
	}
	if err != nil {
		return nil, s.fail("find_order", err)
	}
	return &order, nil
}

// resolveShipmentNumbers maps the shipment numbers named by items to ids in
// one query. Unknown numbers are absent from the map.
func (s *Service) resolveShipmentNumbers(ctx context.Context, items []ItemInput) (map[uint]*uint, error) {
	var numbers []uint
	for _, it := range items {
		if it.ShipmentNumber != nil {
			numbers = append(numbers, *it.ShipmentNumber)
		}
	}
	ids := make(map[uint]*uint, len(numbers))
	if len(numbers) == 0 {
		return ids, nil
	}

	var found []models.Shipment
	if err := s.db.WithContext(ctx).
		Select("id", "shipment_number").
		Where("shipment_number IN ?", numbers).
		Find(&found).Error; err != nil {
		return nil, s.fail("resolve_shipments", err)
	}
	for _, sh := range found {
		ids[sh.ShipmentNumber] = &sh.ID
	}
	return ids, nil
}

func (s *Service) requireClient(ctx context.Context, id uint) error {
	var client models.Client
	err := s.db.WithContext(ctx).Select("id").First(&client, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Cliente", id)
	}
	if err != nil {
		return s.fail("find_client", err)
	}
	return nil
}

func (s *Service) requireShipment(ctx context.Context, id uint) error {
	var shipment models.Shipment
	err := s.db.WithContext(ctx).Select("id").First(&shipment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Envío", id)
	}
	if err != nil {
		return s.fail("find_shipment", err)
	}
	return nil
}

// fail logs err and returns it as a persistence error, unless it already is
// one of the typed errors produced further down.
func (s *Service) fail(op string, err error) error {
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		pe *apperr.PersistenceError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) {
		return err
	}
	if errors.As(err, &pe) {
		return apperr.Persistence(op, pe.Message, pe.Err)
	}
	s.log.Error("order operation failed", zap.String("op", op), zap.Error(err))
	return apperr.Persistence(op, "", err)
}
