// =============================================================================
// Invoice Pipeline - CSV Exporter
// =============================================================================
//
// This module writes enriched invoices as delimited text in the 22-column
// layout the downstream Somex loader consumes, one row per line item, plus a
// trailing "Fuente Cantidad" audit column carrying the quantity-source tag.
//
// OUTPUT FORMAT:
//   - UTF-8 with BOM (the loader runs on Windows/Excel)
//   - Semicolon delimiter by default, configurable
//   - Quantities and prices formatted with 5 decimal places and comma as the
//     decimal separator by default, both configurable
//   - Dates as YYYY-MM-DD, empty when unknown
//
// COLUMN MAPPING:
//   "Cantidad" is the resolved weight/converted quantity when enrichment
//   produced one, otherwise the invoiced quantity; "Cantidad Original" is
//   always the invoiced quantity (the bulk quantity after a remote match).
//   "Unidad Medida" prefers the resolved unit and falls back to the XML
//   unitCode.
//
// =============================================================================

package csvexport

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

// utf8BOM is prepended so Excel detects the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Headers returns the column layout shared by the CSV and the consolidated
// Excel report.
func Headers() []string {
	out := make([]string, len(headers))
	copy(out, headers)
	return out
}

// headers is the fixed column layout. The first 22 columns are the loader
// contract; "Fuente Cantidad" is appended for auditability.
var headers = []string{
	"N° Factura",
	"Nombre Producto",
	"Codigo Subyacente",
	"Unidad Medida en Kg,Un,Lt",
	"Cantidad",
	"Precio Unitario",
	"Fecha Factura",
	"Fecha Pago",
	"Nit Comprador",
	"Nombre Comprador",
	"Nit Vendedor",
	"Nombre Vendedor",
	"Principal V,C",
	"Municipio",
	"Iva",
	"Descripción",
	"Activa",
	"Factura Activa",
	"Bodega",
	"Incentivo",
	"Cantidad Original",
	"Moneda",
	"Fuente Cantidad",
}

// Options controls delimiter and number formatting.
type Options struct {
	// Delimiter separates the fields. Zero means ';'.
	Delimiter rune

	// DecimalPlaces for quantities and prices. Zero means 5.
	DecimalPlaces int

	// DecimalSeparator replaces '.' in formatted numbers. Empty means ",".
	DecimalSeparator string
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ';'
	}
	if o.DecimalPlaces == 0 {
		o.DecimalPlaces = 5
	}
	if o.DecimalSeparator == "" {
		o.DecimalSeparator = ","
	}
	return o
}

// Exporter writes enriched invoices in the delimited layout.
type Exporter struct {
	opts Options
}

// New creates an exporter with the given options; zero values take the
// defaults (';', 5 places, comma separator).
func New(opts Options) *Exporter {
	return &Exporter{opts: opts.withDefaults()}
}

// ExportFile writes the invoices to path, creating parent directories as
// needed. An empty invoice slice is an error; an invoice with zero lines
// simply contributes no rows.
func (e *Exporter) ExportFile(path string, invoices []*invoice.Invoice) error {
	if len(invoices) == 0 {
		return fmt.Errorf("csv export: no invoices to export")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv export: create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv export: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("csv export: write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = e.opts.Delimiter

	if err := w.Write(headers); err != nil {
		return fmt.Errorf("csv export: write header: %w", err)
	}

	for _, inv := range invoices {
		for _, line := range inv.Lines {
			if err := w.Write(e.row(inv, line)); err != nil {
				return fmt.Errorf("csv export: write row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv export: flush: %w", err)
	}
	return f.Close()
}

// row builds one record for a line item.
func (e *Exporter) row(inv *invoice.Invoice, line invoice.LineItem) []string {
	return []string{
		inv.InvoiceNumber,
		line.ProductName,
		line.ReferenceCode,
		line.DisplayUnit(),
		e.formatDecimal(line.ResolvedQuantity()),
		e.formatDecimal(line.UnitPrice),
		formatDate(inv.IssueDate),
		formatDate(inv.DueDate),
		inv.BuyerNIT,
		inv.BuyerName,
		inv.SellerNIT,
		inv.SellerName,
		"", // Principal V,C
		inv.Municipality,
		e.formatTax(line.TaxPercentage),
		"", // Descripción
		"", // Activa
		"", // Factura Activa
		"", // Bodega
		"", // Incentivo
		e.formatDecimal(line.OriginalQuantity),
		currencyCode(inv.Currency),
		string(line.Source),
	}
}

// formatDecimal renders a value with the configured places and separator.
func (e *Exporter) formatDecimal(d decimal.Decimal) string {
	s := d.StringFixed(int32(e.opts.DecimalPlaces))
	if e.opts.DecimalSeparator != "." {
		s = strings.Replace(s, ".", e.opts.DecimalSeparator, 1)
	}
	return s
}

// formatTax renders the IVA percentage without padding to the configured
// places; the loader expects the bare value.
func (e *Exporter) formatTax(d decimal.Decimal) string {
	s := d.String()
	if e.opts.DecimalSeparator != "." {
		s = strings.Replace(s, ".", e.opts.DecimalSeparator, 1)
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// currencyCode maps the document currency to the numeric code the loader
// expects. COP is the only profile currency; everything defaults to it.
func currencyCode(currency string) string {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "", "COP", "1":
		return "1"
	default:
		return currency
	}
}
