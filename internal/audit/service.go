package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"cargo-backend/internal/auth"
	"cargo-backend/internal/logger"
	"cargo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("audit")}
}

func (s *Service) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log not saved: %w", err)
	}
	return nil
}

// Record writes a log entry attributed to the operator of the request. The
// change it describes is already committed, so failures are only logged.
func (s *Service) Record(c *fiber.Ctx, opts LogOptions) {
	if user, ok := auth.CurrentUser(c); ok {
		opts.UserID = user.ID
		opts.UserName = user.Name
	}
	if err := s.WriteLog(c.UserContext(), opts); err != nil {
		logger.FromContext(c.UserContext(), s.log).Warn("audit write failed",
			zap.String("entity_type", opts.EntityType),
			zap.Uint("entity_id", opts.EntityID),
			zap.Error(err))
	}
}

type Filter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Limit      int
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 200
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// snapshot encodes v as JSON, "null" when absent or not encodable.
func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
