// =============================================================================
// Invoice Pipeline - Consolidated Excel Report
// =============================================================================
//
// This module writes the consolidated run report: every enriched line of
// every invoice processed in a run, one workbook, same column layout as the
// delimited export. The workbook is meant for a human reviewer, so the
// header row is styled and quantities are written as native numbers rather
// than preformatted strings.
//
// =============================================================================

package xlsxexport

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/automatizaco/invoice-pipeline/internal/csvexport"
	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

const sheetName = "Facturas"

// headerFillColor is the corporate blue of the reviewed reports.
const headerFillColor = "366092"

// Exporter writes the consolidated workbook.
type Exporter struct{}

// New creates an exporter.
func New() *Exporter { return &Exporter{} }

// ExportFile writes all invoices to one workbook at path, creating parent
// directories as needed.
func (e *Exporter) ExportFile(path string, invoices []*invoice.Invoice) error {
	if len(invoices) == 0 {
		return fmt.Errorf("xlsx export: no invoices to export")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("xlsx export: create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("xlsx export: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("xlsx export: drop default sheet: %w", err)
	}

	if err := e.writeHeader(f); err != nil {
		return err
	}

	rowIdx := 2
	for _, inv := range invoices {
		for _, line := range inv.Lines {
			if err := e.writeRow(f, rowIdx, inv, line); err != nil {
				return err
			}
			rowIdx++
		}
	}

	e.sizeColumns(f)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx export: save %s: %w", path, err)
	}
	return nil
}

// writeHeader writes and styles the header row.
func (e *Exporter) writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("xlsx export: header style: %w", err)
	}

	headers := csvexport.Headers()
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("xlsx export: header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx export: header cell %s: %w", cell, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return fmt.Errorf("xlsx export: apply header style: %w", err)
	}
	return nil
}

// writeRow writes one line item. Cell order must match csvexport.Headers.
func (e *Exporter) writeRow(f *excelize.File, rowIdx int, inv *invoice.Invoice, line invoice.LineItem) error {
	values := []interface{}{
		inv.InvoiceNumber,
		line.ProductName,
		line.ReferenceCode,
		line.DisplayUnit(),
		line.ResolvedQuantity().InexactFloat64(),
		line.UnitPrice.InexactFloat64(),
		formatDate(inv.IssueDate),
		formatDate(inv.DueDate),
		inv.BuyerNIT,
		inv.BuyerName,
		inv.SellerNIT,
		inv.SellerName,
		"", // Principal V,C
		inv.Municipality,
		line.TaxPercentage.InexactFloat64(),
		"", // Descripción
		"", // Activa
		"", // Factura Activa
		"", // Bodega
		"", // Incentivo
		line.OriginalQuantity.InexactFloat64(),
		"1",
		string(line.Source),
	}

	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowIdx)
		if err != nil {
			return fmt.Errorf("xlsx export: row cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("xlsx export: row cell %s: %w", cell, err)
		}
	}
	return nil
}

// sizeColumns applies fixed widths tuned for the report columns; the product
// name and party names get the wide ones.
func (e *Exporter) sizeColumns(f *excelize.File) {
	widths := map[string]float64{
		"A": 14, // N° Factura
		"B": 42, // Nombre Producto
		"C": 14, // Codigo Subyacente
		"D": 10, // Unidad Medida
		"E": 14, // Cantidad
		"F": 14, // Precio Unitario
		"G": 12, // Fecha Factura
		"H": 12, // Fecha Pago
		"I": 14, // Nit Comprador
		"J": 32, // Nombre Comprador
		"K": 14, // Nit Vendedor
		"L": 32, // Nombre Vendedor
		"N": 16, // Municipio
		"U": 16, // Cantidad Original
		"W": 16, // Fuente Cantidad
	}
	for col, w := range widths {
		// Width errors are cosmetic only.
		_ = f.SetColWidth(sheetName, col, col, w)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
