package apihttp

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildRegisterXLSX renders the entity register as a workbook.
func BuildRegisterXLSX(rows []registerRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "register"
	f.SetSheetName("Sheet1", sheet)

	for i, column := range registerHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, column)
	}
	for i, row := range rows {
		record := registerRecord(row)
		for j, value := range record {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRegisterPDF renders a compact PDF view of the entity register.
func BuildRegisterPDF(orgID string, rows []registerRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Entity Register")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Org: %s", orgID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Entities: %d", len(rows)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(22, 6, "Kind", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Customer ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Location", "1", 0, "C", false, 0, "")
	pdf.CellFormat(100, 6, "Identifiers", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		pdf.CellFormat(22, 6, row.Kind, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, row.CustomerIdentifier, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, row.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, row.LocationRef, "1", 0, "L", false, 0, "")
		pdf.CellFormat(100, 6, row.Identifiers, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
