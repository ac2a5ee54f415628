// Package maintenance deletes catalog and business rows, refusing when other
// rows still depend on them.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/models"
	"cargo-backend/internal/orders"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EntityType string

const (
	EntityClient   EntityType = "client"
	EntityProduct  EntityType = "product"
	EntitySupplier EntityType = "supplier"
	EntityShipment EntityType = "shipment"
	EntityOrder    EntityType = "order"
)

// ParseEntityType accepts the singular or plural route segment.
func ParseEntityType(s string) (EntityType, bool) {
	switch s {
	case "client", "clients":
		return EntityClient, true
	case "product", "products":
		return EntityProduct, true
	case "supplier", "suppliers":
		return EntitySupplier, true
	case "shipment", "shipments":
		return EntityShipment, true
	case "order", "orders":
		return EntityOrder, true
	}
	return "", false
}

type Service struct {
	db     *gorm.DB
	orders *orders.Service
	log    *zap.Logger
}

func NewService(db *gorm.DB, o *orders.Service, log *zap.Logger) *Service {
	return &Service{db: db, orders: o, log: log.Named("maintenance")}
}

// blocker is one dependent table checked before a delete.
type blocker struct {
	model   any
	where   string
	name    string
	message string // printf format taking the count
}

// DeleteEntity removes one row and returns it as it was before deletion.
func (s *Service) DeleteEntity(ctx context.Context, t EntityType, id uint) (any, error) {
	switch t {
	case EntityClient:
		var c models.Client
		return s.deleteGuarded(ctx, &c, "Cliente", id, []blocker{
			{&models.Order{}, "client_id = ?", "pedidos", "No se puede borrar: El cliente tiene %d pedidos."},
			{&models.Transaction{}, "client_id = ?", "movimientos", "No se puede borrar: El cliente tiene %d movimientos en su cuenta corriente."},
		}, func(tx *gorm.DB) error {
			// stock shipments outlive the client
			return tx.Model(&models.Shipment{}).Where("client_id = ?", id).Update("client_id", nil).Error
		})

	case EntityProduct:
		var p models.Product
		return s.deleteGuarded(ctx, &p, "Producto", id, []blocker{
			{&models.OrderItem{}, "product_id = ?", "ítems de pedidos", "No se puede borrar: El producto está en %d pedidos."},
		}, nil)

	case EntitySupplier:
		var sp models.Supplier
		return s.deleteGuarded(ctx, &sp, "Proveedor", id, []blocker{
			{&models.OrderItem{}, "supplier_id = ?", "ítems de pedidos", "No se puede borrar: El proveedor está en %d ítems de pedidos."},
		}, nil)

	case EntityShipment:
		var sh models.Shipment
		return s.deleteGuarded(ctx, &sh, "Envío", id, []blocker{
			{&models.Order{}, "shipment_id = ?", "pedidos", "No se puede borrar: El envío tiene %d pedidos."},
			{&models.OrderItem{}, "shipment_id = ?", "ítems", "No se puede borrar: El envío tiene %d ítems asignados."},
		}, nil)

	case EntityOrder:
		order, err := s.orders.Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		return order, nil
	}
	return nil, apperr.Validation("type", fmt.Sprintf("Tipo de registro desconocido: %s", t))
}

// deleteGuarded loads row, checks each blocker in order and deletes inside one
// transaction. cleanup runs before the delete when set.
func (s *Service) deleteGuarded(ctx context.Context, row any, entity string, id uint, blockers []blocker, cleanup func(*gorm.DB) error) (any, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(entity, id)
			}
			return err
		}

		for _, b := range blockers {
			var n int64
			if err := tx.Model(b.model).Where(b.where, id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return &apperr.ReferentialIntegrityError{
					Entity:  entity,
					Blocker: b.name,
					Count:   n,
					Message: fmt.Sprintf(b.message, n),
				}
			}
		}

		if cleanup != nil {
			if err := cleanup(tx); err != nil {
				return err
			}
		}
		return tx.Delete(row).Error
	})

	var (
		nf *apperr.NotFoundError
		ri *apperr.ReferentialIntegrityError
	)
	switch {
	case err == nil:
		s.log.Info("entity deleted", zap.String("entity", entity), zap.Uint("id", id))
		return row, nil
	case errors.As(err, &nf):
		return nil, err
	case errors.As(err, &ri):
		s.log.Info("delete blocked", zap.String("entity", entity), zap.Uint("id", id), zap.Int64("count", ri.Count))
		return nil, err
	default:
		s.log.Error("delete failed", zap.String("entity", entity), zap.Uint("id", id), zap.Error(err))
		return nil, apperr.Persistence("delete_entity", "Error al eliminar (posible restricción de clave foránea)", err)
	}
}
