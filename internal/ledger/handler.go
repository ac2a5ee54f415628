package ledger

import (
	"fmt"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/audit"
	"cargo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type RecordPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          *string         `json:"date"` // "2025-12-09", today when empty
	Reference     string          `json:"reference"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
}

type TransactionResponse struct {
	ID            uint                   `json:"id"`
	ClientID      uint                   `json:"client_id"`
	Type          models.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	Date          string                 `json:"date"`
	Reference     string                 `json:"reference"`
	Description   string                 `json:"description"`
	PaymentMethod string                 `json:"payment_method"`
}

type StatementLineResponse struct {
	TransactionResponse
	Balance decimal.Decimal `json:"balance"`
}

type DebtorResponse struct {
	ClientID uint            `json:"client_id"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
}

func toResponse(t models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID,
		ClientID:      t.ClientID,
		Type:          t.Type,
		Amount:        t.Amount,
		Date:          t.Date.Format("2006-01-02"),
		Reference:     t.Reference,
		Description:   t.Description,
		PaymentMethod: t.PaymentMethod,
	}
}

// POST /api/clients/:id/payments
func RecordPaymentHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := paramID(c)
		if err != nil {
			return err
		}

		var body RecordPaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("body", "Cuerpo de la solicitud inválido")
		}

		var date time.Time
		if body.Date != nil && *body.Date != "" {
			d, err := time.Parse("2006-01-02", *body.Date)
			if err != nil {
				return apperr.Validation("date", "Formato de fecha inválido, debe ser 'AAAA-MM-DD'")
			}
			date = d
		}

		entry, err := svc.RecordPayment(c.UserContext(), Payment{
			ClientID:      clientID,
			Amount:        body.Amount,
			Date:          date,
			Reference:     body.Reference,
			PaymentMethod: body.PaymentMethod,
			Description:   body.Description,
		})
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  "transaction",
			EntityID:    entry.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Pago registrado: %s", entry.Amount.Neg().StringFixed(2)),
			After:       entry,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":     true,
			"transaction": toResponse(*entry),
		})
	}
}

// GET /api/clients/:id/balance
func BalanceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := paramID(c)
		if err != nil {
			return err
		}

		balance, err := svc.BalanceFor(c.UserContext(), clientID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success":   true,
			"client_id": clientID,
			"balance":   balance,
		})
	}
}

// GET /api/clients/:id/statement
func StatementHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := paramID(c)
		if err != nil {
			return err
		}

		lines, err := svc.Statement(c.UserContext(), clientID)
		if err != nil {
			return err
		}

		resp := make([]StatementLineResponse, 0, len(lines))
		for _, l := range lines {
			resp = append(resp, StatementLineResponse{
				TransactionResponse: toResponse(l.Transaction),
				Balance:             l.Balance,
			})
		}

		return c.JSON(fiber.Map{"success": true, "lines": resp})
	}
}

// GET /api/clients/:id/statement/xlsx
func StatementExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, err := paramID(c)
		if err != nil {
			return err
		}

		buf, err := svc.StatementWorkbook(c.UserContext(), clientID)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="cuenta-corriente-%d.xlsx"`, clientID))
		return c.Send(buf.Bytes())
	}
}

// GET /api/debtors
func DebtorsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		debtors, err := svc.Debtors(c.UserContext())
		if err != nil {
			return err
		}

		resp := make([]DebtorResponse, 0, len(debtors))
		for _, d := range debtors {
			resp = append(resp, DebtorResponse{ClientID: d.ClientID, Name: d.Name, Balance: d.Balance})
		}

		return c.JSON(fiber.Map{"success": true, "debtors": resp})
	}
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "ID inválido")
	}
	return uint(id), nil
}
