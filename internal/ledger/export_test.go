package ledger

import (
	"context"
	"testing"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestStatementWorkbook(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newService(db)
	client := testutil.CreateClient(t, db, "Ana")
	ctx := context.Background()

	_, err := svc.RecordCharge(ctx, Charge{ClientID: client.ID, Amount: dec("300"), Reference: "Order #1", Description: "Pedido #1"})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, Payment{ClientID: client.ID, Amount: dec("200"), PaymentMethod: "efectivo"})
	require.NoError(t, err)

	buf, err := svc.StatementWorkbook(ctx, client.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(statementSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Fecha", rows[0][0])
	assert.Equal(t, "Pedido #1", rows[1][2])
	assert.Equal(t, "Pago a cuenta", rows[2][2])

	balance, err := f.GetCellValue(statementSheet, "G3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "100", balance)
}

func TestStatementWorkbook_UnknownClient(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := newService(db).StatementWorkbook(context.Background(), 42)
	assert.True(t, apperr.IsNotFound(err))
}
