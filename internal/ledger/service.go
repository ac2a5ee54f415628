// Package ledger keeps the per-client accounts-receivable log. Entries carry a
// signed amount (charges positive, payments negative) and the balance is the
// plain sum; nothing is ever cached.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/clock"
	"cargo-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultPaymentDescription = "Pago a cuenta"

type Service struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.Logger
}

func NewService(db *gorm.DB, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{db: db, clock: clk, log: log.Named("ledger")}
}

// WithTx returns a copy bound to tx. Writes made through it commit or roll
// back with the caller's transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.db = tx
	return &cp
}

type Charge struct {
	ClientID    uint
	Amount      decimal.Decimal
	Date        time.Time
	Reference   string
	Description string
}

type Payment struct {
	ClientID      uint
	Amount        decimal.Decimal
	Date          time.Time
	Reference     string
	PaymentMethod string
	Description   string
}

// RecordCharge appends a CARGO entry. Amount must be positive.
func (s *Service) RecordCharge(ctx context.Context, in Charge) (*models.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "El monto del cargo debe ser mayor que 0")
	}
	if err := s.requireClient(ctx, in.ClientID); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	entry := models.Transaction{
		ClientID:    in.ClientID,
		Type:        models.TransactionCharge,
		Amount:      in.Amount,
		Date:        date,
		Reference:   in.Reference,
		Description: in.Description,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, s.fail("record_charge", err)
	}
	return &entry, nil
}

// RecordPayment appends a PAGO entry. Positive amounts are negated so a
// payment always lowers the balance.
func (s *Service) RecordPayment(ctx context.Context, in Payment) (*models.Transaction, error) {
	if in.Amount.IsZero() {
		return nil, apperr.Validation("amount", "El monto del pago no puede ser 0")
	}
	if err := s.requireClient(ctx, in.ClientID); err != nil {
		return nil, err
	}

	amount := in.Amount
	if amount.IsPositive() {
		amount = amount.Neg()
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = DefaultPaymentDescription
	}
	date := in.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	entry := models.Transaction{
		ClientID:      in.ClientID,
		Type:          models.TransactionPayment,
		Amount:        amount,
		Date:          date,
		Reference:     in.Reference,
		Description:   description,
		PaymentMethod: in.PaymentMethod,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, s.fail("record_payment", err)
	}
	return &entry, nil
}

// BalanceFor returns the sum of every entry of the client. Positive means the
// client owes money. Amounts are summed as decimals in Go; sqlite stores
// numeric columns as REAL.
func (s *Service) BalanceFor(ctx context.Context, clientID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("client_id = ?", clientID).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, s.fail("balance", err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

// ReplaceEntriesForReference deletes every entry whose reference is prefix or
// starts with prefix+"/" and inserts entries, atomically. It is the only way
// ledger entries change after being written.
func (s *Service) ReplaceEntriesForReference(ctx context.Context, prefix string, entries []models.Transaction) error {
	if strings.TrimSpace(prefix) == "" {
		return apperr.Validation("reference", "La referencia es obligatoria")
	}
	for i := range entries {
		if err := checkEntry(entries[i]); err != nil {
			return err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reference = ? OR reference LIKE ? ESCAPE '\\'", prefix, escapeLike(prefix)+"/%").
			Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		return s.fail("replace_entries", err)
	}
	return nil
}

// StatementLine is one ledger entry with the balance right after it.
type StatementLine struct {
	models.Transaction
	Balance decimal.Decimal
}

// Statement lists the client's entries oldest first with a running balance.
func (s *Service) Statement(ctx context.Context, clientID uint) ([]StatementLine, error) {
	if err := s.requireClient(ctx, clientID); err != nil {
		return nil, err
	}

	var entries []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("date ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, s.fail("statement", err)
	}

	lines := make([]StatementLine, 0, len(entries))
	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.Amount)
		lines = append(lines, StatementLine{Transaction: e, Balance: running})
	}
	return lines, nil
}

type Debtor struct {
	ClientID uint
	Name     string
	Balance  decimal.Decimal
}

// Debtors returns the clients with a positive balance, largest first.
func (s *Service) Debtors(ctx context.Context) ([]Debtor, error) {
	var rows []struct {
		ClientID uint
		Name     string
		Amount   decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Table("transactions").
		Select("transactions.client_id AS client_id, clients.name AS name, transactions.amount AS amount").
		Joins("JOIN clients ON clients.id = transactions.client_id").
		Order("transactions.client_id").
		Scan(&rows).Error
	if err != nil {
		return nil, s.fail("debtors", err)
	}

	byClient := make(map[uint]*Debtor)
	var order []uint
	for _, r := range rows {
		d, ok := byClient[r.ClientID]
		if !ok {
			d = &Debtor{ClientID: r.ClientID, Name: r.Name, Balance: decimal.Zero}
			byClient[r.ClientID] = d
			order = append(order, r.ClientID)
		}
		d.Balance = d.Balance.Add(r.Amount)
	}

	debtors := make([]Debtor, 0, len(order))
	for _, id := range order {
		if d := byClient[id]; d.Balance.IsPositive() {
			debtors = append(debtors, *d)
		}
	}
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].Balance.GreaterThan(debtors[j].Balance)
	})
	return debtors, nil
}

func (s *Service) requireClient(ctx context.Context, clientID uint) error {
	if clientID == 0 {
		return apperr.Validation("client_id", "El cliente es obligatorio")
	}
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

func checkEntry(e models.Transaction) error {
	if e.ClientID == 0 {
		return apperr.Validation("client_id", "El cliente es obligatorio")
	}
	switch e.Type {
	case models.TransactionCharge:
		if !e.Amount.IsPositive() {
			return apperr.Validation("amount", "Un cargo debe tener monto positivo")
		}
	case models.TransactionPayment:
		if e.Amount.IsPositive() {
			return apperr.Validation("amount", "Un pago no puede tener monto positivo")
		}
	default:
		return apperr.Validation("type", "Tipo de movimiento inválido")
	}
	return nil
}

func (s *Service) fail(op string, err error) error {
	s.log.Error("ledger operation failed", zap.String("op", op), zap.Error(err))
	return apperr.Persistence(op, "", err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
