package shipments

import (
	"context"
	"errors"
	"strings"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/clock"
	"cargo-backend/internal/models"
	"cargo-backend/internal/sequence"
	"cargo-backend/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	clock      clock.Clock
	thresholds Thresholds
	aggregator *Aggregator
	reconciler *Reconciler
	log        *zap.Logger
}

func NewService(db *gorm.DB, clk clock.Clock, th Thresholds, log *zap.Logger) *Service {
	return &Service{
		db:         db,
		clock:      clk,
		thresholds: th,
		aggregator: NewAggregator(db, log),
		reconciler: NewReconciler(db, clk, th, log),
		log:        log.Named("shipments"),
	}
}

func (s *Service) Aggregator() *Aggregator { return s.aggregator }
func (s *Service) Reconciler() *Reconciler { return s.reconciler }

type CreateInput struct {
	Forwarder   string     `json:"forwarder" validate:"required,max=100"`
	ClientID    *uint      `json:"client_id"`
	DateShipped *time.Time `json:"date_shipped"`
	DateArrived *time.Time `json:"date_arrived"`
	Notes       string     `json:"notes" validate:"max=1000"`
}

// Create numbers and inserts a shipment. Its initial status is the one its
// dates imply, EN_TRANSITO when it has none.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Shipment, error) {
	in.Forwarder = strings.TrimSpace(in.Forwarder)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.ClientID != nil {
		if err := s.requireClient(ctx, *in.ClientID); err != nil {
			return nil, err
		}
	}

	status := models.ShipmentStatusInTransit
	if auto, ok := AutomaticTarget(in.DateShipped, in.DateArrived, s.clock.Now(), s.thresholds); ok {
		status = auto
	}

	shipment := models.Shipment{
		ClientID:    in.ClientID,
		Forwarder:   in.Forwarder,
		Status:      status,
		DateShipped: in.DateShipped,
		DateArrived: in.DateArrived,
		Notes:       in.Notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := sequence.Next(tx, sequence.ShipmentNumbers)
		if err != nil {
			return err
		}
		shipment.ShipmentNumber = n
		return tx.Create(&shipment).Error
	})
	if err != nil {
		return nil, s.fail("create_shipment", err)
	}

	s.log.Info("shipment created",
		zap.Uint("shipment_id", shipment.ID),
		zap.Uint("shipment_number", shipment.ShipmentNumber),
		zap.String("status", shipment.Status))
	return &shipment, nil
}

// DateChange updates a nullable date when Set; a nil Value clears it.
type DateChange struct {
	Set   bool
	Value *time.Time
}

type UpdateInput struct {
	Status      string `json:"status" validate:"required,max=30"`
	Forwarder   *string
	DateShipped DateChange
	DateArrived DateChange
	WeightFW    *decimal.Decimal
	WeightCli   *decimal.Decimal
	Notes       *string
}

// Update applies an operator edit. The given status is stored as is and
// cascaded to orders and items; unless it is what the dates already imply it
// is also kept as the manual override the reconciler respects.
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (before, after *models.Shipment, err error) {
	in.Status = strings.TrimSpace(in.Status)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	prior := *current

	next := *current
	if in.Forwarder != nil {
		next.Forwarder = strings.TrimSpace(*in.Forwarder)
	}
	if in.DateShipped.Set {
		next.DateShipped = in.DateShipped.Value
	}
	if in.DateArrived.Set {
		next.DateArrived = in.DateArrived.Value
	}
	if in.WeightFW != nil {
		next.WeightFW = in.WeightFW
	}
	if in.WeightCli != nil {
		next.WeightCli = in.WeightCli
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}

	next.Status = in.Status
	next.ManualStatus = &in.Status
	if auto, ok := AutomaticTarget(next.DateShipped, next.DateArrived, s.clock.Now(), s.thresholds); ok && normalize(auto) == normalize(in.Status) {
		next.ManualStatus = nil
	}

	updates := map[string]any{
		"forwarder":     next.Forwarder,
		"status":        next.Status,
		"manual_status": next.ManualStatus,
		"date_shipped":  next.DateShipped,
		"date_arrived":  next.DateArrived,
		"weight_fw":     next.WeightFW,
		"weight_cli":    next.WeightCli,
		"notes":         next.Notes,
	}
	if err := s.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, nil, s.fail("update_shipment", err)
	}

	if err := Cascade(ctx, s.db, id, next.Status); err != nil {
		return nil, nil, s.fail("cascade_status", err)
	}

	return &prior, &next, nil
}

// Get reconciles the shipment and returns it with its client.
func (s *Service) Get(ctx context.Context, id uint) (*models.Shipment, error) {
	s.reconciler.Sync(ctx, id)

	var shipment models.Shipment
	err := s.db.WithContext(ctx).Preload("Client").First(&shipment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Envío", id)
	}
	if err != nil {
		return nil, s.fail("get_shipment", err)
	}
	return &shipment, nil
}

type ListFilter struct {
	ClientID *uint
	Status   string
}

// List returns shipments newest first, each reconciled before it is returned.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Shipment, error) {
	q := s.db.WithContext(ctx).Model(&models.Shipment{}).Preload("Client")
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}

	var list []models.Shipment
	if err := q.Order("shipment_number DESC").Find(&list).Error; err != nil {
		return nil, s.fail("list_shipments", err)
	}

	s.reconciler.ReconcileAll(ctx, list)

	if f.Status == "" {
		return list, nil
	}
	filtered := list[:0]
	for _, sh := range list {
		if normalize(sh.Status) == normalize(f.Status) {
			filtered = append(filtered, sh)
		}
	}
	return filtered, nil
}

func (s *Service) Recompute(ctx context.Context, id uint) (Totals, error) {
	return s.aggregator.Recompute(ctx, id)
}

func (s *Service) find(ctx context.Context, id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	err := s.db.WithContext(ctx).First(&shipment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Envío", id)
	}
	if err != nil {
		return nil, s.fail("find_shipment", err)
	}
	return &shipment, nil
}

func (s *Service) requireClient(ctx context.Context, clientID uint) error {
	var client models.Client
	err := s.db.WithContext(ctx).Select("id").First(&client, clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Cliente", clientID)
	}
	if err != nil {
		return s.fail("find_client", err)
	}
	return nil
}

func (s *Service) fail(op string, err error) error {
	s.log.Error("shipment operation failed", zap.String("op", op), zap.Error(err))
	return apperr.Persistence(op, "", err)
}
