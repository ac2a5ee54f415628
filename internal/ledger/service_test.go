package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/clock"
	"cargo-backend/internal/models"
	"cargo-backend/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(db *gorm.DB) *Service {
	return NewService(db, clock.Fixed(now), zap.NewNop())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordCharge(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	entry, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec("300"), Reference: "Order #1", Description: "Pedido #1"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCharge, entry.Type)
	assert.True(t, entry.Amount.Equal(dec("300")))
	assert.True(t, entry.Date.Equal(now), "zero date defaults to now")

	for _, amount := range []string{"0", "-5"} {
		_, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec(amount)})
		assert.True(t, apperr.IsValidation(err), "amount %s", amount)
	}

	_, err = svc.RecordCharge(ctx, Charge{ClientID: 999, Amount: dec("1")})
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.RecordCharge(ctx, Charge{Amount: dec("1")})
	assert.True(t, apperr.IsValidation(err))
}

func TestRecordPayment_Normalizes(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	positive, err := svc.RecordPayment(ctx, Payment{ClientID: client.ID, Amount: dec("200"), PaymentMethod: "transferencia"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPayment, positive.Type)
	assert.True(t, positive.Amount.Equal(dec("-200")))
	assert.Equal(t, DefaultPaymentDescription, positive.Description)

	negative, err := svc.RecordPayment(ctx, Payment{ClientID: client.ID, Amount: dec("-50"), Description: "Saldo parcial"})
	require.NoError(t, err)
	assert.True(t, negative.Amount.Equal(dec("-50")))
	assert.Equal(t, "Saldo parcial", negative.Description)

	_, err = svc.RecordPayment(ctx, Payment{ClientID: client.ID, Amount: decimal.Zero})
	assert.True(t, apperr.IsValidation(err))
}

func TestBalanceFor_IsSumOfEntries(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ana := testutil.CreateClient(t, db, "Ana")
	beto := testutil.CreateClient(t, db, "Beto")
	ctx := context.Background()

	balance, err := svc.BalanceFor(ctx, ana.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "no entries means zero")

	_, err = svc.RecordCharge(ctx, Charge{ClientID: ana.ID, Amount: dec("300"), Reference: "Order #1"})
	require.NoError(t, err)
	_, err = svc.RecordCharge(ctx, Charge{ClientID: ana.ID, Amount: dec("120.50"), Reference: "Order #2"})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, Payment{ClientID: ana.ID, Amount: dec("200")})
	require.NoError(t, err)
	_, err = svc.RecordCharge(ctx, Charge{ClientID: beto.ID, Amount: dec("999"), Reference: "Order #3"})
	require.NoError(t, err)

	balance, err = svc.BalanceFor(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "220.5", balance.String())

	var entries []models.Transaction
	require.NoError(t, db.Where("client_id = ?", ana.ID).Find(&entries).Error)
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(balance))
}

func TestReplaceEntriesForReference(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	for _, ref := range []string{"Order #1", "Order #1/flete", "Order #10", "Order #1x"} {
		_, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec("10"), Reference: ref})
		require.NoError(t, err)
	}

	err := svc.ReplaceEntriesForReference(ctx, "Order #1", []models.Transaction{{
		ClientID:  client.ID,
		Type:      models.TransactionCharge,
		Amount:    dec("75"),
		Date:      now,
		Reference: "Order #1",
	}})
	require.NoError(t, err)

	var refs []string
	require.NoError(t, db.Model(&models.Transaction{}).Order("reference").Pluck("reference", &refs).Error)
	assert.Equal(t, []string{"Order #1", "Order #10", "Order #1x"}, refs)

	balance, err := svc.BalanceFor(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "95", balance.String())
}

func TestReplaceEntriesForReference_RejectsBadEntries(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	_, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec("10"), Reference: "Order #1"})
	require.NoError(t, err)

	err = svc.ReplaceEntriesForReference(ctx, "Order #1", []models.Transaction{{
		ClientID: client.ID, Type: models.TransactionCharge, Amount: dec("-10"), Date: now,
	}})
	assert.True(t, apperr.IsValidation(err))

	err = svc.ReplaceEntriesForReference(ctx, "", nil)
	assert.True(t, apperr.IsValidation(err))

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "nothing deleted on rejected input")
}

func TestWithTx_RollsBackWithCaller(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.WithTx(tx).RecordCharge(context.Background(), Charge{ClientID: client.ID, Amount: dec("50")})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := svc.BalanceFor(context.Background(), client.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestStatement_RunningBalance(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	_, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec("100"), Date: day(3)})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, Payment{ClientID: client.ID, Amount: dec("40"), Date: day(5)})
	require.NoError(t, err)
	_, err = svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec("60"), Date: day(1)})
	require.NoError(t, err)

	lines, err := svc.Statement(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	var got []string
	for _, l := range lines {
		got = append(got, l.Balance.String())
	}
	assert.Equal(t, []string{"60", "160", "120"}, got)
}

func TestDebtors(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	ana := testutil.CreateClient(t, db, "Ana")
	beto := testutil.CreateClient(t, db, "Beto")
	caro := testutil.CreateClient(t, db, "Caro")
	ctx := context.Background()

	_, err := svc.RecordCharge(ctx, Charge{ClientID: ana.ID, Amount: dec("100")})
	require.NoError(t, err)
	_, err = svc.RecordCharge(ctx, Charge{ClientID: beto.ID, Amount: dec("500")})
	require.NoError(t, err)
	_, err = svc.RecordCharge(ctx, Charge{ClientID: caro.ID, Amount: dec("50")})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, Payment{ClientID: caro.ID, Amount: dec("50")})
	require.NoError(t, err)

	debtors, err := svc.Debtors(ctx)
	require.NoError(t, err)
	require.Len(t, debtors, 2)
	assert.Equal(t, "Beto", debtors[0].Name)
	assert.Equal(t, "500", debtors[0].Balance.String())
	assert.Equal(t, ana.ID, debtors[1].ClientID)
}

func TestFractionalAmounts_SettleToZero(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	for _, amount := range []string{"0.10", "0.20"} {
		_, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec(amount)})
		require.NoError(t, err)
	}
	_, err := svc.RecordPayment(ctx, Payment{ClientID: client.ID, Amount: dec("0.30")})
	require.NoError(t, err)

	balance, err := svc.BalanceFor(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance %s", balance)

	debtors, err := svc.Debtors(ctx)
	require.NoError(t, err)
	assert.Empty(t, debtors, "settled client is not a debtor")

	lines, err := svc.Statement(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, lines[2].Balance.Equal(balance), "statement agrees with balance")
}

func TestPersistenceFailure_IsWrappedAndLogged(t *testing.T) {
	m := testutil.NewMockDB(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewService(m.DB, clock.Fixed(now), zap.New(core))

	m.Mock.ExpectQuery(`SELECT .* FROM "clients"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	m.Mock.ExpectQuery(`INSERT INTO "transactions"`).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := svc.RecordCharge(context.Background(), Charge{ClientID: 1, Amount: dec("10")})

	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "record_charge", pe.Op)
	assert.NotContains(t, err.Error(), "connection reset", "cause stays out of the operator message")
	assert.Equal(t, 1, logs.FilterMessage("ledger operation failed").Len())
	assert.NoError(t, m.Mock.ExpectationsWereMet())
}

func TestBalanceFor_PersistenceFailure(t *testing.T) {
	m := testutil.NewMockDB(t)
	svc := NewService(m.DB, clock.Fixed(now), zap.NewNop())

	m.Mock.ExpectQuery(`SELECT "amount" FROM "transactions"`).
		WillReturnError(errors.New("timeout"))

	_, err := svc.BalanceFor(context.Background(), 1)
	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.NoError(t, m.Mock.ExpectationsWereMet())
}
