package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/audit"
	"cargo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	ClientID uint        `json:"client_id"`
	Date     *string     `json:"date"` // "2025-12-09", today when empty
	Items    []ItemInput `json:"items"`
	Notes    string      `json:"notes"`
}

// UpdateOrderStatusRequest: shipment_id absent leaves the shipment alone,
// null detaches the order.
type UpdateOrderStatusRequest struct {
	Status     string          `json:"status"`
	ShipmentID json.RawMessage `json:"shipment_id"`
}

type OrderItemResponse struct {
	ID          uint            `json:"id"`
	ProductID   *uint           `json:"product_id"`
	SupplierID  *uint           `json:"supplier_id"`
	ShipmentID  *uint           `json:"shipment_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Profit      decimal.Decimal `json:"profit"`
	Status      string          `json:"status"`
}

type OrderResponse struct {
	ID          uint                `json:"id"`
	OrderNumber uint                `json:"order_number"`
	ClientID    uint                `json:"client_id"`
	ClientName  string              `json:"client_name"`
	ShipmentID  *uint               `json:"shipment_id"`
	Date        string              `json:"date"`
	Status      string              `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Notes       string              `json:"notes"`
	Items       []OrderItemResponse `json:"items"`
}

func toResponse(o models.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ClientID:    o.ClientID,
		ClientName:  o.Client.Name,
		ShipmentID:  o.ShipmentID,
		Date:        o.Date.Format("2006-01-02"),
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Notes:       o.Notes,
		Items:       make([]OrderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			SupplierID:  it.SupplierID,
			ShipmentID:  it.EffectiveShipmentID(o),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			UnitCost:    it.UnitCost,
			Subtotal:    it.Subtotal,
			Profit:      it.Profit,
			Status:      it.Status,
		})
	}
	return resp
}

// POST /api/orders
func CreateOrderHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
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

		order, err := svc.Create(c.UserContext(), CreateInput{
			ClientID: body.ClientID,
			Date:     date,
			Items:    body.Items,
			Notes:    body.Notes,
		})
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  "order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Pedido #%d creado por %s", order.OrderNumber, order.TotalAmount.StringFixed(2)),
			After:       order,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":      true,
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		})
	}
}

// PUT /api/orders/:id/status
func UpdateOrderStatusHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		var body UpdateOrderStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("body", "Cuerpo de la solicitud inválido")
		}

		assign, err := parseAssignment(body.ShipmentID)
		if err != nil {
			return err
		}

		before, after, err := svc.UpdateStatus(c.UserContext(), id, body.Status, assign)
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  "order",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Pedido #%d: %s -> %s", after.OrderNumber, before.Status, after.Status),
			Before:      before,
			After:       after,
		})

		return c.JSON(fiber.Map{"success": true})
	}
}

// GET /api/orders/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		order, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "order": toResponse(*order)})
	}
}

// POST /api/orders/:id/resync
func ResyncOrderChargeHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		order, err := svc.ResyncCharge(c.UserContext(), id)
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  "order",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Cargo del pedido #%d resincronizado: %s", order.OrderNumber, order.TotalAmount.StringFixed(2)),
			After:       order,
		})

		return c.JSON(fiber.Map{
			"success":      true,
			"total_amount": order.TotalAmount,
		})
	}
}

func parseAssignment(raw json.RawMessage) (ShipmentAssignment, error) {
	if len(raw) == 0 {
		return ShipmentAssignment{}, nil
	}
	if string(raw) == "null" {
		return ShipmentAssignment{Set: true}, nil
	}
	var id uint
	if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
		return ShipmentAssignment{}, apperr.Validation("shipment_id", "shipment_id inválido")
	}
	return ShipmentAssignment{Set: true, ID: &id}, nil
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "ID inválido")
	}
	return uint(id), nil
}
