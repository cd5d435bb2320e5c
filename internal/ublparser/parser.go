// =============================================================================
// Invoice Pipeline - UBL 2.1 Invoice Parser
// =============================================================================
//
// This module parses UBL 2.1 Colombia-profile electronic invoices into the
// domain Invoice type. The documents are namespace-heavy; the two namespaces
// that matter for extraction are:
//
//   cac - urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2
//   cbc - urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2
//
// EXTRACTION RULES:
//   - Invoice number:   cbc:ID (document level, mandatory)
//   - Dates:            cbc:IssueDate, cbc:DueDate (YYYY-MM-DD)
//   - Seller/buyer:     cac:AccountingSupplierParty / cac:AccountingCustomerParty
//                       NIT from cac:PartyTaxScheme/cbc:CompanyID, name from
//                       cac:PartyName/cbc:Name falling back to
//                       cac:PartyLegalEntity/cbc:RegistrationName
//   - Delivery city:    cac:Delivery/cac:DeliveryLocation/.../cbc:CityName
//   - Lines:            cac:InvoiceLine with product name from
//                       cac:Item/cbc:Description falling back to cbc:Name,
//                       reference code from cac:SellersItemIdentification,
//                       cbc:InvoicedQuantity (+unitCode), cac:Price/cbc:PriceAmount
//
// ERROR POLICY:
//   A document that is not well-formed XML, is not a UBL invoice, or lacks an
//   invoice number fails with ParseError. A structurally defective individual
//   line is skipped and recorded as a warning on the invoice; one bad line
//   must not abort the whole document. Zero lines is a valid invoice.
//
// Quantities and prices are decoded with shopspring/decimal straight from the
// source text, so the 5-decimal precision of the document survives untouched.
//
// =============================================================================

package ublparser

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

// =============================================================================
// ERRORS
// =============================================================================

// ParseError reports a document that could not be parsed at all: malformed
// XML or missing mandatory UBL structure. One document's ParseError never
// affects the processing of other documents.
type ParseError struct {
	// Reason describes the structural problem.
	Reason string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ubl parse: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ubl parse: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// =============================================================================
// WIRE STRUCTURES
// =============================================================================

// The cbc/cac namespace URIs, spelled out in the struct tags below.
const (
	nsCBC = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsCAC = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
)

// ublDocument mirrors the slice of the UBL schema the pipeline needs. Fields
// not listed here are ignored by encoding/xml.
type ublDocument struct {
	XMLName xml.Name

	ID           string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 ID"`
	IssueDate    string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 IssueDate"`
	DueDate      string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 DueDate"`
	CurrencyCode string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 DocumentCurrencyCode"`

	Supplier ublPartyContainer `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 AccountingSupplierParty"`
	Customer ublPartyContainer `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 AccountingCustomerParty"`
	Delivery ublDelivery       `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Delivery"`

	Lines []ublInvoiceLine `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 InvoiceLine"`
}

type ublPartyContainer struct {
	Party ublParty `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Party"`
}

type ublParty struct {
	PartyName struct {
		Name string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 Name"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 PartyName"`

	TaxScheme struct {
		CompanyID string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 CompanyID"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 PartyTaxScheme"`

	LegalEntity struct {
		RegistrationName string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 RegistrationName"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 PartyLegalEntity"`
}

// displayName applies the PartyName -> RegistrationName fallback the DIAN
// documents need (either element can be the populated one).
func (p ublParty) displayName() string {
	if name := strings.TrimSpace(p.PartyName.Name); name != "" {
		return name
	}
	return strings.TrimSpace(p.LegalEntity.RegistrationName)
}

type ublDelivery struct {
	Location struct {
		Address struct {
			CityName string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 CityName"`
		} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Address"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 DeliveryLocation"`
}

type ublInvoiceLine struct {
	Quantity struct {
		Value    string `xml:",chardata"`
		UnitCode string `xml:"unitCode,attr"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 InvoicedQuantity"`

	Item struct {
		Description string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 Description"`
		Name        string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 Name"`

		SellersID struct {
			ID string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 ID"`
		} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 SellersItemIdentification"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Item"`

	Price struct {
		Amount string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 PriceAmount"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 Price"`

	TaxTotal struct {
		Subtotal struct {
			Percent string `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2 Percent"`
		} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 TaxSubtotal"`
	} `xml:"urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2 TaxTotal"`
}

// =============================================================================
// PARSER
// =============================================================================

// Parse decodes a UBL 2.1 invoice document into the domain Invoice. Line
// items are structural only at this point; enrichment (catalog, remote,
// fallback) happens in the pipeline afterwards, which also sets Source.
func Parse(xmlBytes []byte, logger *zap.Logger) (*invoice.Invoice, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc ublDocument
	if err := xml.Unmarshal(xmlBytes, &doc); err != nil {
		return nil, &ParseError{Reason: "document is not well-formed XML", Err: err}
	}

	number := strings.TrimSpace(doc.ID)
	if number == "" {
		return nil, &ParseError{Reason: "document has no invoice number (cbc:ID)"}
	}

	inv := &invoice.Invoice{
		InvoiceNumber: number,
		IssueDate:     parseDate(doc.IssueDate),
		DueDate:       parseDate(doc.DueDate),
		SellerNIT:     strings.TrimSpace(doc.Supplier.Party.TaxScheme.CompanyID),
		SellerName:    doc.Supplier.Party.displayName(),
		BuyerNIT:      strings.TrimSpace(doc.Customer.Party.TaxScheme.CompanyID),
		BuyerName:     doc.Customer.Party.displayName(),
		Municipality:  strings.TrimSpace(doc.Delivery.Location.Address.CityName),
		Currency:      strings.TrimSpace(doc.CurrencyCode),
	}

	// Zero lines is valid: an empty invoice, not a malformed one.
	for i, line := range doc.Lines {
		item, warn := parseLine(line)
		if warn != "" {
			inv.Warnings = append(inv.Warnings, invoice.Warning{
				LineIndex: i + 1,
				Message:   warn,
			})
			logger.Warn("skipping defective invoice line",
				zap.String("invoice", number),
				zap.Int("line", i+1),
				zap.String("reason", warn))
			continue
		}
		inv.Lines = append(inv.Lines, item)
	}

	logger.Debug("parsed invoice",
		zap.String("invoice", number),
		zap.Int("lines", len(inv.Lines)),
		zap.Int("skipped", len(inv.Warnings)))

	return inv, nil
}

// parseLine converts one cac:InvoiceLine. A non-empty warning string means
// the line is defective and must be skipped.
func parseLine(line ublInvoiceLine) (invoice.LineItem, string) {
	name := strings.TrimSpace(line.Item.Description)
	if name == "" {
		name = strings.TrimSpace(line.Item.Name)
	}
	if name == "" {
		return invoice.LineItem{}, "line has no product name"
	}

	quantityText := strings.TrimSpace(line.Quantity.Value)
	if quantityText == "" {
		return invoice.LineItem{}, "line has no invoiced quantity"
	}
	quantity, err := decimal.NewFromString(quantityText)
	if err != nil {
		return invoice.LineItem{}, fmt.Sprintf("unparseable quantity %q", quantityText)
	}

	price := decimal.Zero
	if priceText := strings.TrimSpace(line.Price.Amount); priceText != "" {
		price, err = decimal.NewFromString(priceText)
		if err != nil {
			return invoice.LineItem{}, fmt.Sprintf("unparseable price %q", priceText)
		}
	}

	// Tax percent is optional; an absent or unparseable value degrades to
	// zero rather than dropping the line.
	tax := decimal.Zero
	if taxText := strings.TrimSpace(line.TaxTotal.Subtotal.Percent); taxText != "" {
		if parsed, err := decimal.NewFromString(taxText); err == nil {
			tax = parsed
		}
	}

	return invoice.LineItem{
		ProductName:      name,
		ReferenceCode:    strings.TrimSpace(line.Item.SellersID.ID),
		OriginalQuantity: quantity,
		UnitPrice:        price,
		XMLUnitCode:      strings.TrimSpace(line.Quantity.UnitCode),
		TaxPercentage:    tax,
	}, ""
}

// parseDate parses the YYYY-MM-DD dates the profile uses. An absent or
// malformed date yields the zero time.
func parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}
	}
	return t
}
