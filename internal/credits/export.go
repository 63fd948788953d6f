package credits

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

var journalColumns = []string{
	"Transaction ID", "Credit Entry", "Type", "Status",
	"Sender", "Recipient", "Quantity", "Created At", "Completed At",
}

// BuildJournalWorkbook renders journal entries to an Excel workbook for
// registry audits.
func BuildJournalWorkbook(txns []*CreditTransaction) (*excelize.File, error) {
	file := excelize.NewFile()
	const sheet = "Transactions"
	file.SetSheetName("Sheet1", sheet)

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, column := range journalColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, column); err != nil {
			return nil, err
		}
		if err := file.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for row, txn := range txns {
		entryID := ""
		if txn.CreditEntryID != nil {
			entryID = txn.CreditEntryID.String()
		}
		sender := ""
		if txn.SenderID != nil {
			sender = txn.SenderID.String()
		}
		recipient := ""
		if txn.RecipientID != nil {
			recipient = txn.RecipientID.String()
		}
		completedAt := ""
		if txn.CompletedAt != nil {
			completedAt = txn.CompletedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			txn.ID.String(), entryID, string(txn.Type), string(txn.Status),
			sender, recipient, txn.Quantity,
			txn.CreatedAt.Format("2006-01-02 15:04:05"), completedAt,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if err := file.AutoFilter(sheet, fmt.Sprintf("A1:I%d", len(txns)+1), nil); err != nil {
		return nil, err
	}
	return file, nil
}
