package maintenance

import (
	"fmt"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/audit"
	"cargo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// DELETE /api/:type/:id
func DeleteEntityHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, ok := ParseEntityType(c.Params("type"))
		if !ok {
			return fiber.ErrNotFound
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperr.Validation("id", "ID inválido")
		}

		deleted, err := svc.DeleteEntity(c.UserContext(), t, uint(id))
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  string(t),
			EntityID:    uint(id),
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Registro eliminado: %s #%d", t, id),
			Before:      deleted,
		})

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Registro eliminado correctamente",
		})
	}
}
