package workflow

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportBudgetTrendXLSX renders the projected series as a one-sheet workbook
// for download. Columns mirror the chart: month key and rounded total.
func ExportBudgetTrendXLSX(series []MonthlyBudgetPoint) (*excelize.File, error) {
	f := excelize.NewFile()

	const sheet = "Budget Trend"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Month", "Total Budget"}); err != nil {
		return nil, err
	}
	for i, point := range series {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{point.Month, point.TotalBudget}); err != nil {
			return nil, err
		}
	}
	return f, nil
}
