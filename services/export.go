package services

import (
	"bytes"
	"fmt"
	"time"

	"case_portal_go/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Cases"

var exportHeaders = []string{"ID", "Title", "Status", "Reported by", "Assigned to", "Location", "Registered", "Updated"}

// ExportCasesXLSX writes a directory view to a workbook. Anonymous creators stay anonymous.
func ExportCasesXLSX(cases []models.Case) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle)
	f.SetColWidth(exportSheet, "A", "A", 38)
	f.SetColWidth(exportSheet, "B", lastCol, 20)

	for r, c := range cases {
		location := ""
		if c.Location != nil {
			location = *c.Location
		}
		row := []interface{}{
			c.ID,
			c.Title,
			c.Status,
			c.CreatorName(),
			c.AssigneeName(),
			location,
			c.CreatedAt.Format(time.DateTime),
			c.UpdatedAt.Format(time.DateTime),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
