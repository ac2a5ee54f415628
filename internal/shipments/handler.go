package shipments

import (
	"fmt"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/audit"
	"cargo-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateShipmentRequest struct {
	Forwarder   string  `json:"forwarder"`
	ClientID    *uint   `json:"client_id"`
	DateShipped *string `json:"date_shipped"` // "2025-12-09"
	DateArrived *string `json:"date_arrived"`
	Notes       string  `json:"notes"`
}

// UpdateShipmentRequest: absent fields stay unchanged; an empty date string
// clears the date.
type UpdateShipmentRequest struct {
	Status      string           `json:"status"`
	Forwarder   *string          `json:"forwarder"`
	DateShipped *string          `json:"date_shipped"`
	DateArrived *string          `json:"date_arrived"`
	WeightFW    *decimal.Decimal `json:"weight_fw"`
	WeightCli   *decimal.Decimal `json:"weight_cli"`
	Notes       *string          `json:"notes"`
}

type ShipmentResponse struct {
	ID             uint             `json:"id"`
	ShipmentNumber uint             `json:"shipment_number"`
	ClientID       *uint            `json:"client_id"`
	ClientName     string           `json:"client_name,omitempty"`
	Forwarder      string           `json:"forwarder"`
	Status         string           `json:"status"`
	ManualStatus   *string          `json:"manual_status"`
	DateShipped    *string          `json:"date_shipped"`
	DateArrived    *string          `json:"date_arrived"`
	WeightFW       *decimal.Decimal `json:"weight_fw"`
	WeightCli      *decimal.Decimal `json:"weight_cli"`
	WeightItems    decimal.Decimal  `json:"weight_items"`
	ItemCount      int              `json:"item_count"`
	CostTotal      decimal.Decimal  `json:"cost_total"`
	PriceTotal     decimal.Decimal  `json:"price_total"`
	Profit         decimal.Decimal  `json:"profit"`
	Notes          string           `json:"notes"`
}

func toResponse(s models.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ID:             s.ID,
		ShipmentNumber: s.ShipmentNumber,
		ClientID:       s.ClientID,
		Forwarder:      s.Forwarder,
		Status:         s.Status,
		ManualStatus:   s.ManualStatus,
		DateShipped:    formatDate(s.DateShipped),
		DateArrived:    formatDate(s.DateArrived),
		WeightFW:       s.WeightFW,
		WeightCli:      s.WeightCli,
		WeightItems:    s.WeightItems,
		ItemCount:      s.ItemCount,
		CostTotal:      s.CostTotal,
		PriceTotal:     s.PriceTotal,
		Profit:         s.Profit,
		Notes:          s.Notes,
	}
	if s.Client != nil {
		resp.ClientName = s.Client.Name
	}
	return resp
}

// POST /api/shipments
func CreateShipmentHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateShipmentRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("body", "Cuerpo de la solicitud inválido")
		}

		shipped, err := parseOptionalDate("date_shipped", body.DateShipped)
		if err != nil {
			return err
		}
		arrived, err := parseOptionalDate("date_arrived", body.DateArrived)
		if err != nil {
			return err
		}

		shipment, err := svc.Create(c.UserContext(), CreateInput{
			Forwarder:   body.Forwarder,
			ClientID:    body.ClientID,
			DateShipped: shipped,
			DateArrived: arrived,
			Notes:       body.Notes,
		})
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  "shipment",
			EntityID:    shipment.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Envío #%d creado (%s)", shipment.ShipmentNumber, shipment.Forwarder),
			After:       shipment,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":         true,
			"shipment_id":     shipment.ID,
			"shipment_number": shipment.ShipmentNumber,
			"status":          shipment.Status,
		})
	}
}

// PUT /api/shipments/:id
func UpdateShipmentHandler(svc *Service, auditSvc *audit.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		var body UpdateShipmentRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("body", "Cuerpo de la solicitud inválido")
		}

		in := UpdateInput{
			Status:    body.Status,
			Forwarder: body.Forwarder,
			WeightFW:  body.WeightFW,
			WeightCli: body.WeightCli,
			Notes:     body.Notes,
		}
		if in.DateShipped, err = parseDateChange("date_shipped", body.DateShipped); err != nil {
			return err
		}
		if in.DateArrived, err = parseDateChange("date_arrived", body.DateArrived); err != nil {
			return err
		}

		before, after, err := svc.Update(c.UserContext(), id, in)
		if err != nil {
			return err
		}

		auditSvc.Record(c, audit.LogOptions{
			EntityType:  "shipment",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Envío #%d: %s -> %s", after.ShipmentNumber, before.Status, after.Status),
			Before:      before,
			After:       after,
		})

		return c.JSON(fiber.Map{"success": true})
	}
}

// POST /api/shipments/:id/sync
func SyncShipmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		status, changed := svc.Reconciler().Sync(c.UserContext(), id)

		var statusVal any
		if status != "" {
			statusVal = status
		}
		return c.JSON(fiber.Map{
			"success": true,
			"status":  statusVal,
			"changed": changed,
		})
	}
}

// GET /api/shipments?client_id=3&status=LLEGANDO
func ListShipmentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f ListFilter
		if v := c.QueryInt("client_id"); v > 0 {
			id := uint(v)
			f.ClientID = &id
		}
		f.Status = c.Query("status")

		list, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}

		resp := make([]ShipmentResponse, 0, len(list))
		for _, s := range list {
			resp = append(resp, toResponse(s))
		}
		return c.JSON(fiber.Map{"success": true, "shipments": resp})
	}
}

// GET /api/shipments/:id
func GetShipmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		shipment, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "shipment": toResponse(*shipment)})
	}
}

// POST /api/shipments/:id/recompute
func RecomputeShipmentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		t, err := svc.Recompute(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success":      true,
			"item_count":   t.ItemCount,
			"cost_total":   t.CostTotal,
			"price_total":  t.PriceTotal,
			"profit":       t.Profit,
			"weight_items": t.Weight,
			"client_id":    t.ClientID,
		})
	}
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "ID inválido")
	}
	return uint(id), nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, apperr.Validation(field, "Formato de fecha inválido, debe ser 'AAAA-MM-DD'")
	}
	return &d, nil
}

func parseDateChange(field string, s *string) (DateChange, error) {
	if s == nil {
		return DateChange{}, nil
	}
	d, err := parseOptionalDate(field, s)
	if err != nil {
		return DateChange{}, err
	}
	return DateChange{Set: true, Value: d}, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
