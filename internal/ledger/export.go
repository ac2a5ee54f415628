package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const statementSheet = "Cuenta corriente"

var statementHeader = []any{"Fecha", "Tipo", "Descripción", "Referencia", "Medio de pago", "Importe", "Saldo"}

// StatementWorkbook renders the client's statement as an .xlsx workbook.
func (s *Service) StatementWorkbook(ctx context.Context, clientID uint) (*bytes.Buffer, error) {
	lines, err := s.Statement(ctx, clientID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	buf, err := writeStatement(f, lines)
	if err != nil {
		s.log.Error("statement export failed", zap.Uint("client_id", clientID), zap.Error(err))
		return nil, err
	}
	return buf, nil
}

func writeStatement(f *excelize.File, lines []StatementLine) (*bytes.Buffer, error) {
	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(statementSheet, "A1", &statementHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, l := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			l.Date.Format("2006-01-02"),
			string(l.Type),
			l.Description,
			l.Reference,
			l.PaymentMethod,
			l.Amount.InexactFloat64(),
			l.Balance.InexactFloat64(),
		}
		if err := f.SetSheetRow(statementSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		last := fmt.Sprintf("G%d", len(lines)+1)
		if err := f.SetCellStyle(statementSheet, "F2", last, money); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(statementSheet, "A", "A", 12)
	_ = f.SetColWidth(statementSheet, "C", "D", 28)

	return f.WriteToBuffer()
}
