package core

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateSheet is the name of the data sheet in the exemplar workbook.
const TemplateSheet = "Colisages"

// templateRows are the sample lines written below the header, in column order.
var templateRows = [][]any{
	{"LIGNE-001", "123456", "Exemple de produit", "CMD-001", "Nom du fournisseur", "FACT-001", "1", "XOF", 100, 25.50, 150, 140, 2.5, "CM", "IM4", 0, "Site Perenco"},
	{"LIGNE-002", "654321", "Autre produit 100% DC", "CMD-002", "Autre fournisseur", "FACT-002", "1", "XOF", 50, 45.00, 80, 75, 1.5, "FR", "IM4", 100, "Site Perenco"},
	{"LIGNE-003", "789012", "Produit avec 30% DC", "CMD-003", "Troisième fournisseur", "FACT-003", "1", "EUR", 75, 120.00, 200, 190, 3.0, "US", "IM4", 30, "Site Perenco"},
}

// requiredColumns are highlighted in the template header.
var requiredColumns = map[Column]bool{
	ColDescription: true,
	ColCurrency:    true,
	ColQuantity:    true,
}

// columnHelp documents each column on the instructions sheet.
var columnHelp = [numColumns]string{
	ColRowKey:           "Your reference for the line, used in error reports (default ROW_<n>)",
	ColHSCode:           "Tariff code; leave empty for goods not yet classified",
	ColDescription:      "Description of the goods",
	ColOrderNo:          "Purchase order number",
	ColSupplierName:     "Supplier name",
	ColInvoiceNo:        "Supplier invoice number",
	ColItemNo:           "Line number on the invoice (default 1)",
	ColCurrency:         "Invoice currency code (XOF, EUR, USD...)",
	ColQuantity:         "Number of packages, greater than zero (default 1)",
	ColUnitPrice:        "Invoice unit price",
	ColGrossWeight:      "Gross weight in kg",
	ColNetWeight:        "Net weight in kg",
	ColVolume:           "Volume in m3",
	ColCountry:          "Country of origin, ISO code",
	ColRegimeCode:       "Customs regime label or ID",
	ColRegimeRatio:      "Regime ratio in percent",
	ColCustomerGrouping: "Customer grouping (default -)",
}

// WriteTemplate writes the exemplar import workbook to w. The first sheet
// holds the canonical headers and sample rows; a second sheet describes
// the columns.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("required style: %w", err)
	}

	for i, col := range Columns() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(TemplateSheet, cell, col.Header()); err != nil {
			return err
		}
		style := headerStyle
		if requiredColumns[col] {
			style = requiredStyle
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, style); err != nil {
			return err
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(TemplateSheet, name, name, 18); err != nil {
			return err
		}
	}

	for r, values := range templateRows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(TemplateSheet, cell, &values); err != nil {
			return fmt.Errorf("write sample row %d: %w", r+1, err)
		}
	}

	if err := writeInstructions(f); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

func writeInstructions(f *excelize.File) error {
	const sheet = "Instructions"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("add instructions sheet: %w", err)
	}

	lines := [][]any{
		{"Packing list import"},
		{},
		{"Column", "Description", "Required"},
	}
	for _, col := range Columns() {
		required := ""
		if requiredColumns[col] {
			required = "yes"
		}
		lines = append(lines, []any{col.Header(), columnHelp[col], required})
	}

	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 70)
}
