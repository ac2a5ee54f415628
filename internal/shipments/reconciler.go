package shipments

import (
	"context"
	"fmt"

	"cargo-backend/internal/clock"
	"cargo-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler advances shipment statuses from their milestone dates and pushes
// the result down to orders and items. It runs on the read path; there is no
// scheduler.
type Reconciler struct {
	db         *gorm.DB
	clock      clock.Clock
	thresholds Thresholds
	log        *zap.Logger
}

func NewReconciler(db *gorm.DB, clk clock.Clock, th Thresholds, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, clock: clk, thresholds: th, log: log.Named("reconciler")}
}

// Sync runs one reconciliation pass on a shipment and returns the status it
// ends with. Failures are logged, never returned: a failed status write
// reports the prior status with changed=false, an unknown shipment returns "".
func (r *Reconciler) Sync(ctx context.Context, shipmentID uint) (status string, changed bool) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, shipmentID).Error; err != nil {
		r.log.Warn("sync: shipment not loaded", zap.Uint("shipment_id", shipmentID), zap.Error(err))
		return "", false
	}

	changed, err := r.Reconcile(ctx, &shipment)
	if err != nil {
		r.log.Error("sync failed",
			zap.Uint("shipment_id", shipmentID),
			zap.String("status", shipment.Status),
			zap.Error(err))
	}
	return shipment.Status, changed
}

// Reconcile resolves the status of an already loaded shipment and, when it
// changed, persists it and cascades it. s is updated in place only after the
// write succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, s *models.Shipment) (bool, error) {
	auto, hasAuto := AutomaticTarget(s.DateShipped, s.DateArrived, r.clock.Now(), r.thresholds)
	res := Resolve(s.Status, s.ManualStatus, auto, hasAuto)

	if res.Status == s.Status && !res.ClearManual {
		return false, nil
	}

	updates := map[string]any{"status": res.Status}
	if res.ClearManual {
		updates["manual_status"] = nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", s.ID).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("update shipment %d status: %w", s.ID, err)
	}

	prior := s.Status
	s.Status = res.Status
	if res.ClearManual {
		s.ManualStatus = nil
	}

	if res.Status == prior {
		return false, nil
	}

	r.log.Info("shipment status advanced",
		zap.Uint("shipment_id", s.ID),
		zap.String("from", prior),
		zap.String("to", res.Status),
		zap.Bool("override_cleared", res.ClearManual))

	if err := Cascade(ctx, r.db, s.ID, res.Status); err != nil {
		return true, err
	}
	return true, nil
}

// ReconcileAll reconciles every shipment in list, logging failures.
func (r *Reconciler) ReconcileAll(ctx context.Context, list []models.Shipment) {
	for i := range list {
		if _, err := r.Reconcile(ctx, &list[i]); err != nil {
			r.log.Error("reconcile failed", zap.Uint("shipment_id", list[i].ID), zap.Error(err))
		}
	}
}

// Cascade writes the order status mapped from shipmentStatus to every order
// assigned to the shipment and every item travelling in it. Statuses without
// a mapping do not cascade.
func Cascade(ctx context.Context, db *gorm.DB, shipmentID uint, shipmentStatus string) error {
	orderStatus, ok := MapToOrderStatus(shipmentStatus)
	if !ok {
		return nil
	}

	db = db.WithContext(ctx)
	if err := db.Model(&models.Order{}).
		Where("shipment_id = ?", shipmentID).
		Update("status", orderStatus).Error; err != nil {
		return fmt.Errorf("cascade to orders of shipment %d: %w", shipmentID, err)
	}
	if err := db.Model(&models.OrderItem{}).
		Scopes(EffectiveItems(shipmentID)).
		Update("status", orderStatus).Error; err != nil {
		return fmt.Errorf("cascade to items of shipment %d: %w", shipmentID, err)
	}
	return nil
}
