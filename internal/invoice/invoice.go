// =============================================================================
// Invoice Pipeline - Shared Domain Types
// =============================================================================
//
// This package contains the domain types shared across the pipeline to avoid
// import cycles. Types defined here are used by:
//   - ublparser
//   - resolver
//   - pipeline
//   - csvexport / xlsxexport
//
// =============================================================================

package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY SOURCE
// =============================================================================

// QuantitySource records which resolution policy produced the final
// quantity/weight values of a line item. Every enriched line carries exactly
// one of these tags so the exported rows can be audited.
type QuantitySource string

const (
	// SourceRemoteMatch means the remote bulk-quantity service returned an
	// authoritative entry for the line's reference code. The remote values
	// take precedence over everything else.
	SourceRemoteMatch QuantitySource = "REMOTE_MATCH"

	// SourceCatalogOnly means the product was found in the reference catalog
	// but no remote data was available (or no reference code existed to
	// query with). Weight and unit come from the catalog entry.
	SourceCatalogOnly QuantitySource = "CATALOG_ONLY"

	// SourceXMLFallback means neither the catalog nor the remote service
	// resolved the line. Weight and unit are derived from the product name
	// text when a recognizable packaging pattern exists, otherwise absent.
	SourceXMLFallback QuantitySource = "XML_FALLBACK"
)

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem represents a single enriched line of an invoice.
type LineItem struct {
	// ProductName is the free-text product description from the XML.
	ProductName string

	// ReferenceCode correlates the product with the catalog and the remote
	// service. It may come from the catalog entry or from the XML itself
	// (SellersItemIdentification). Empty when unknown.
	ReferenceCode string

	// OriginalQuantity is the invoiced quantity as it appeared in the
	// source document, preserved at 5-decimal precision. When the remote
	// service matches, this is overridden with the bulk (packaging-unit)
	// quantity.
	OriginalQuantity decimal.Decimal

	// UnitPrice is the per-unit price from the XML.
	UnitPrice decimal.Decimal

	// XMLUnitCode is the unitCode attribute of InvoicedQuantity, kept for
	// reference; the resolved unit below is what the export uses.
	XMLUnitCode string

	// TaxPercentage is the IVA percentage for the line, zero when absent.
	TaxPercentage decimal.Decimal

	// ResolvedUnit is the unit of measure after enrichment (e.g. KG, LT,
	// UN). Nil-equivalent is the empty string: no unit could be resolved.
	ResolvedUnit string

	// ResolvedWeight is the resolved weight or converted quantity after
	// enrichment. Nil when no policy produced a value.
	ResolvedWeight *decimal.Decimal

	// Source tags which resolution policy applied. Never empty after the
	// pipeline has run.
	Source QuantitySource
}

// ResolvedQuantity is the value the export layers publish as the quantity:
// the resolved weight/converted quantity when enrichment produced one, the
// invoiced quantity otherwise.
func (l LineItem) ResolvedQuantity() decimal.Decimal {
	if l.ResolvedWeight != nil {
		return *l.ResolvedWeight
	}
	return l.OriginalQuantity
}

// DisplayUnit prefers the resolved unit and falls back to the XML unitCode.
func (l LineItem) DisplayUnit() string {
	if l.ResolvedUnit != "" {
		return l.ResolvedUnit
	}
	return l.XMLUnitCode
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice represents one parsed UBL document. An invoice owns its line items
// exclusively; they are never shared across invoices.
type Invoice struct {
	// InvoiceNumber is the cbc:ID of the document (e.g. "2B-285138").
	InvoiceNumber string

	// IssueDate and DueDate come from cbc:IssueDate / cbc:DueDate.
	// Zero time means the element was absent or unparseable.
	IssueDate time.Time
	DueDate   time.Time

	// Seller and buyer identification (NIT) and display names.
	SellerNIT  string
	SellerName string
	BuyerNIT   string
	BuyerName  string

	// Municipality is the delivery city name, when present.
	Municipality string

	// Currency is the document currency code. The export layer maps it to
	// the numeric code expected downstream; default "1".
	Currency string

	// Lines holds the ordered line items of the invoice. Zero lines is a
	// valid state (an empty invoice), distinct from a malformed document.
	Lines []LineItem

	// Warnings collects line-level defects that were recovered locally
	// (line skipped) rather than escalated to a parse failure.
	Warnings []Warning
}

// Warning records a recovered, non-fatal defect encountered while parsing or
// enriching a document.
type Warning struct {
	// LineIndex is the 1-based position of the offending cac:InvoiceLine,
	// or 0 for document-level warnings.
	LineIndex int

	// Message describes the defect.
	Message string
}

// =============================================================================
// REMOTE LOOKUP RESULT
// =============================================================================

// LookupResult is one entry returned by the remote bulk-quantity service for
// an invoice-number query. Entries are matched to line items by exact
// reference-code equality.
type LookupResult struct {
	// ReferenceCode identifies the product (e.g. "120704").
	ReferenceCode string

	// BulkQuantity is the quantity in packaging units (bags/bultos).
	BulkQuantity decimal.Decimal

	// BaseUnitQuantity is the quantity converted to kilograms.
	BaseUnitQuantity decimal.Decimal
}
