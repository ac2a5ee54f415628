package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/clock"
	"cargo-backend/internal/ledger"
	"cargo-backend/internal/models"
	"cargo-backend/internal/shipments"
	"cargo-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	orders *Service
	ledger *ledger.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	l := ledger.NewService(db, clock.Fixed(now), log)
	agg := shipments.NewAggregator(db, log)
	return fixture{db: db, orders: NewService(db, clock.Fixed(now), l, agg, log), ledger: l}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(qty int, price, cost string) ItemInput {
	return ItemInput{ProductName: "Item", Quantity: qty, UnitPrice: dec(price), UnitCost: dec(cost)}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreate_ChargesClientAndPaymentReducesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, f.db, "Ana")

	balance, err := f.ledger.BalanceFor(ctx, client.ID)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	order, err := f.orders.Create(ctx, CreateInput{
		ClientID: client.ID,
		Items:    []ItemInput{item(2, "100", "60"), item(1, "100", "70")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "300", order.TotalAmount.String())
	assert.True(t, order.Date.Equal(now))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "80", order.Items[0].Profit.String())
	assert.Equal(t, "30", order.Items[1].Profit.String())

	balance, err = f.ledger.BalanceFor(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", balance.String())

	var charge models.Transaction
	require.NoError(t, f.db.First(&charge, "reference = ?", "Order #1").Error)
	assert.Equal(t, models.TransactionCharge, charge.Type)
	assert.Equal(t, "Pedido #1", charge.Description)

	_, err = f.ledger.RecordPayment(ctx, ledger.Payment{ClientID: client.ID, Amount: dec("200")})
	require.NoError(t, err)
	balance, err = f.ledger.BalanceFor(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, f.db, "Ana")

	cases := map[string]CreateInput{
		"missing client":    {Items: []ItemInput{item(1, "10", "5")}},
		"no items":          {ClientID: client.ID},
		"zero quantity":     {ClientID: client.ID, Items: []ItemInput{item(0, "10", "5")}},
		"negative price":    {ClientID: client.ID, Items: []ItemInput{item(1, "-10", "5")}},
		"negative unitcost": {ClientID: client.ID, Items: []ItemInput{item(1, "10", "-1")}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.orders.Create(ctx, in)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}

	_, err := f.orders.Create(ctx, CreateInput{ClientID: 999, Items: []ItemInput{item(1, "10", "5")}})
	assert.True(t, apperr.IsNotFound(err))

	assert.Zero(t, count(t, f.db, &models.Order{}))
}

func TestCreate_IsAtomic(t *testing.T) {
	f := newFixture(t)
	client := testutil.CreateClient(t, f.db, "Ana")

	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_ledger_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == "transactions" {
			_ = tx.AddError(errors.New("injected failure"))
		}
	})
	require.NoError(t, err)

	_, err = f.orders.Create(context.Background(), CreateInput{
		ClientID: client.ID,
		Items:    []ItemInput{item(1, "10", "5"), item(3, "20", "10")},
	})
	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)

	assert.Zero(t, count(t, f.db, &models.Order{}))
	assert.Zero(t, count(t, f.db, &models.OrderItem{}))
	assert.Zero(t, count(t, f.db, &models.Transaction{}))

	require.NoError(t, f.db.Callback().Create().Remove("test:fail_ledger_insert"))
	order, err := f.orders.Create(context.Background(), CreateInput{ClientID: client.ID, Items: []ItemInput{item(1, "10", "5")}})
	require.NoError(t, err)
	assert.Equal(t, uint(1), order.OrderNumber, "rolled back number is reused")
}

func TestCreate_ZeroTotalSkipsCharge(t *testing.T) {
	f := newFixture(t)
	client := testutil.CreateClient(t, f.db, "Ana")

	_, err := f.orders.Create(context.Background(), CreateInput{ClientID: client.ID, Items: []ItemInput{item(2, "0", "0")}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, f.db, &models.Order{}))
	assert.Zero(t, count(t, f.db, &models.Transaction{}))
}

func TestCreate_ResolvesShipmentNumbersAndRecomputes(t *testing.T) {
	f := newFixture(t)
	client := testutil.CreateClient(t, f.db, "Ana")
	shipment := testutil.CreateShipment(t, f.db, 12, models.ShipmentStatusLeaving, nil, nil)

	known, unknown := uint(12), uint(99)
	a := item(2, "50", "30")
	a.ShipmentNumber = &known
	b := item(1, "20", "10")
	b.ShipmentNumber = &unknown

	order, err := f.orders.Create(context.Background(), CreateInput{ClientID: client.ID, Items: []ItemInput{a, b}})
	require.NoError(t, err)
	require.NotNil(t, order.Items[0].ShipmentID)
	assert.Equal(t, shipment.ID, *order.Items[0].ShipmentID)
	assert.Nil(t, order.Items[1].ShipmentID)

	var got models.Shipment
	require.NoError(t, f.db.First(&got, shipment.ID).Error)
	assert.Equal(t, 2, got.ItemCount)
	assert.True(t, got.PriceTotal.Equal(dec("100")))
	require.NotNil(t, got.ClientID)
	assert.Equal(t, client.ID, *got.ClientID)
}

func TestCreate_NumbersAreDense(t *testing.T) {
	f := newFixture(t)
	client := testutil.CreateClient(t, f.db, "Ana")

	for want := uint(1); want <= 3; want++ {
		order, err := f.orders.Create(context.Background(), CreateInput{ClientID: client.ID, Items: []ItemInput{item(1, "1", "1")}})
		require.NoError(t, err)
		assert.Equal(t, want, order.OrderNumber)
	}
}

func TestUpdateStatus_MovesBetweenShipments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, f.db, "Ana")
	s1 := testutil.CreateShipment(t, f.db, 1, models.ShipmentStatusLeaving, nil, nil)
	s2 := testutil.CreateShipment(t, f.db, 2, models.ShipmentStatusLeaving, nil, nil)

	order, err := f.orders.Create(ctx, CreateInput{ClientID: client.ID, Items: []ItemInput{item(4, "10", "5")}})
	require.NoError(t, err)

	_, after, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusMiami, ShipmentAssignment{Set: true, ID: &s1.ID})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusMiami, after.Status)

	var got models.Shipment
	require.NoError(t, f.db.First(&got, s1.ID).Error)
	assert.Equal(t, 4, got.ItemCount)

	before, _, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusMiami, ShipmentAssignment{Set: true, ID: &s2.ID})
	require.NoError(t, err)
	assert.Equal(t, s1.ID, *before.ShipmentID)

	var old, moved models.Shipment
	require.NoError(t, f.db.First(&old, s1.ID).Error)
	assert.Equal(t, 0, old.ItemCount, "old shipment recomputed")
	require.NoError(t, f.db.First(&moved, s2.ID).Error)
	assert.Equal(t, 4, moved.ItemCount, "new shipment recomputed")

	// status only, shipment untouched
	_, after, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled, ShipmentAssignment{})
	require.NoError(t, err)
	assert.Equal(t, s2.ID, *after.ShipmentID)
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, f.db, "Ana")
	order, err := f.orders.Create(ctx, CreateInput{ClientID: client.ID, Items: []ItemInput{item(1, "10", "5")}})
	require.NoError(t, err)

	_, _, err = f.orders.UpdateStatus(ctx, order.ID, " ", ShipmentAssignment{})
	assert.True(t, apperr.IsValidation(err))

	_, _, err = f.orders.UpdateStatus(ctx, 999, "MIAMI", ShipmentAssignment{})
	assert.True(t, apperr.IsNotFound(err))

	missing := uint(42)
	_, _, err = f.orders.UpdateStatus(ctx, order.ID, "MIAMI", ShipmentAssignment{Set: true, ID: &missing})
	assert.True(t, apperr.IsNotFound(err))
}

func TestResyncCharge_ReplacesLedgerEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, f.db, "Ana")
	order, err := f.orders.Create(ctx, CreateInput{ClientID: client.ID, Items: []ItemInput{item(1, "100", "50")}})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).
		Updates(map[string]any{"quantity": 3, "subtotal": dec("300")}).Error)

	resynced, err := f.orders.ResyncCharge(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", resynced.TotalAmount.String())

	balance, err := f.ledger.BalanceFor(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", balance.String())
	assert.Equal(t, int64(1), count(t, f.db, &models.Transaction{}))

	_, err = f.orders.ResyncCharge(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, f.db, &models.Transaction{}), "resync is idempotent")
}

func TestDelete_RemovesItemsChargeAndRecomputes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := testutil.CreateClient(t, f.db, "Ana")
	shipment := testutil.CreateShipment(t, f.db, 1, models.ShipmentStatusLeaving, nil, nil)

	order, err := f.orders.Create(ctx, CreateInput{ClientID: client.ID, Items: []ItemInput{item(2, "10", "5")}})
	require.NoError(t, err)
	_, _, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusLeaving, ShipmentAssignment{Set: true, ID: &shipment.ID})
	require.NoError(t, err)

	deleted, err := f.orders.Delete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, deleted.OrderNumber)

	assert.Zero(t, count(t, f.db, &models.Order{}))
	assert.Zero(t, count(t, f.db, &models.OrderItem{}))
	assert.Zero(t, count(t, f.db, &models.Transaction{}))

	var got models.Shipment
	require.NoError(t, f.db.First(&got, shipment.ID).Error)
	assert.Equal(t, 0, got.ItemCount)
	assert.True(t, got.PriceTotal.IsZero())

	_, err = f.orders.Delete(ctx, order.ID)
	assert.True(t, apperr.IsNotFound(err))
}
