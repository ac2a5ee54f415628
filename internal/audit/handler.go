package audit

import (
	"cargo-backend/internal/apperr"
	"cargo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

// GET /api/audit-logs?entity_type=order&entity_id=1&user_id=2&limit=50
func ListAuditLogsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType: c.Query("entity_type"),
			EntityID:   queryID(c, "entity_id"),
			UserID:     queryID(c, "user_id"),
			Limit:      c.QueryInt("limit"),
		}

		logs, err := svc.List(c.UserContext(), f)
		if err != nil {
			return apperr.Persistence("list_audit_logs", "Los registros no se pudieron listar", err)
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  l.BeforeData,
				AfterData:   l.AfterData,
			})
		}

		return c.JSON(fiber.Map{"success": true, "logs": resp})
	}
}

func queryID(c *fiber.Ctx, key string) uint {
	if v := c.QueryInt(key); v > 0 {
		return uint(v)
	}
	return 0
}
