// Package reports reads and writes the spreadsheets operators work with.
package reports

import (
	"fmt"
	"io"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/xuri/excelize/v2"
)

const ledgerSheet = "Ledger"

var ledgerHeader = []interface{}{"ID", "Account", "Amount", "Balance After", "Reason", "Ref Type", "Ref ID", "Description", "Created At (UTC)"}

// WriteLedger writes entries as an xlsx workbook with one row per entry.
func WriteLedger(w io.Writer, entries []models.LedgerEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ledgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(ledgerSheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", ledgerHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			e.ID,
			e.AccountID,
			e.Amount,
			e.BalanceAfter,
			e.Reason,
			e.RefType,
			e.RefID,
			e.Description,
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}
