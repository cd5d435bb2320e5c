package ublparser

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docHeader = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>2B-285138</cbc:ID>
  <cbc:IssueDate>2025-03-14</cbc:IssueDate>
  <cbc:DueDate>2025-04-13</cbc:DueDate>
  <cbc:DocumentCurrencyCode>COP</cbc:DocumentCurrencyCode>
  <cac:AccountingSupplierParty>
    <cac:Party>
      <cac:PartyName><cbc:Name>PRODUCTORA SOMEX S.A.S</cbc:Name></cac:PartyName>
      <cac:PartyTaxScheme><cbc:CompanyID>800221724</cbc:CompanyID></cac:PartyTaxScheme>
    </cac:Party>
  </cac:AccountingSupplierParty>
  <cac:AccountingCustomerParty>
    <cac:Party>
      <cac:PartyTaxScheme><cbc:CompanyID>900123456</cbc:CompanyID></cac:PartyTaxScheme>
      <cac:PartyLegalEntity><cbc:RegistrationName>COMPRAS DEL ORIENTE SAS</cbc:RegistrationName></cac:PartyLegalEntity>
    </cac:Party>
  </cac:AccountingCustomerParty>
  <cac:Delivery>
    <cac:DeliveryLocation>
      <cac:Address><cbc:CityName>Medellín</cbc:CityName></cac:Address>
    </cac:DeliveryLocation>
  </cac:Delivery>`

const docFooter = `</Invoice>`

func lineXML(name, code, qty, unit, price string) string {
	codeXML := ""
	if code != "" {
		codeXML = fmt.Sprintf(`<cac:SellersItemIdentification><cbc:ID>%s</cbc:ID></cac:SellersItemIdentification>`, code)
	}
	return fmt.Sprintf(`<cac:InvoiceLine>
  <cbc:InvoicedQuantity unitCode="%s">%s</cbc:InvoicedQuantity>
  <cac:Item><cbc:Description>%s</cbc:Description>%s</cac:Item>
  <cac:Price><cbc:PriceAmount currencyID="COP">%s</cbc:PriceAmount></cac:Price>
  <cac:TaxTotal><cac:TaxSubtotal><cbc:Percent>19.00</cbc:Percent></cac:TaxSubtotal></cac:TaxTotal>
</cac:InvoiceLine>`, unit, qty, name, codeXML, price)
}

func TestParseFullInvoice(t *testing.T) {
	doc := docHeader +
		lineXML("SAL REFINADA X 500 GR", "120704", "20.00000", "KGM", "1850.00000") +
		lineXML("MAIZ AMARILLO X 40 KILOS", "", "3.00000", "UN", "92000.00000") +
		docFooter

	inv, err := Parse([]byte(doc), nil)
	require.NoError(t, err)

	assert.Equal(t, "2B-285138", inv.InvoiceNumber)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	assert.Equal(t, time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Equal(t, "800221724", inv.SellerNIT)
	assert.Equal(t, "PRODUCTORA SOMEX S.A.S", inv.SellerName)
	assert.Equal(t, "900123456", inv.BuyerNIT)
	// PartyName absent for the buyer: RegistrationName fallback applies.
	assert.Equal(t, "COMPRAS DEL ORIENTE SAS", inv.BuyerName)
	assert.Equal(t, "Medellín", inv.Municipality)
	assert.Equal(t, "COP", inv.Currency)

	require.Len(t, inv.Lines, 2)

	first := inv.Lines[0]
	assert.Equal(t, "SAL REFINADA X 500 GR", first.ProductName)
	assert.Equal(t, "120704", first.ReferenceCode)
	assert.Equal(t, "KGM", first.XMLUnitCode)
	// 5-decimal precision must survive untouched.
	assert.Equal(t, "20.00000", first.OriginalQuantity.String())
	assert.True(t, first.UnitPrice.Equal(decimal.RequireFromString("1850")))
	assert.True(t, first.TaxPercentage.Equal(decimal.RequireFromString("19")))

	assert.Empty(t, inv.Lines[1].ReferenceCode)
}

func TestParseEmptyInvoiceIsValid(t *testing.T) {
	inv, err := Parse([]byte(docHeader+docFooter), nil)
	require.NoError(t, err)
	assert.Empty(t, inv.Lines)
	assert.Empty(t, inv.Warnings)
}

func TestParseMalformedXML(t *testing.T) {
	_, err := Parse([]byte("<Invoice><cbc:ID>unclosed"), nil)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseMissingInvoiceNumber(t *testing.T) {
	doc := `<?xml version="1.0"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:IssueDate>2025-01-01</cbc:IssueDate>
</Invoice>`
	_, err := Parse([]byte(doc), nil)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "invoice number")
}

func TestParseSkipsDefectiveLineWithWarning(t *testing.T) {
	badLine := `<cac:InvoiceLine>
  <cbc:InvoicedQuantity unitCode="KGM">not-a-number</cbc:InvoicedQuantity>
  <cac:Item><cbc:Description>PRODUCTO MALO</cbc:Description></cac:Item>
</cac:InvoiceLine>`
	doc := docHeader +
		lineXML("PRODUCTO BUENO", "1", "5.00000", "UN", "100.00000") +
		badLine +
		docFooter

	inv, err := Parse([]byte(doc), nil)
	require.NoError(t, err, "one bad line must not abort the invoice")

	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "PRODUCTO BUENO", inv.Lines[0].ProductName)

	require.Len(t, inv.Warnings, 1)
	assert.Equal(t, 2, inv.Warnings[0].LineIndex)
	assert.Contains(t, inv.Warnings[0].Message, "quantity")
}

func TestParseProductNameFallsBackToName(t *testing.T) {
	line := `<cac:InvoiceLine>
  <cbc:InvoicedQuantity unitCode="UN">1.00000</cbc:InvoicedQuantity>
  <cac:Item><cbc:Name>NOMBRE SIN DESCRIPCION</cbc:Name></cac:Item>
  <cac:Price><cbc:PriceAmount>10.00000</cbc:PriceAmount></cac:Price>
</cac:InvoiceLine>`
	inv, err := Parse([]byte(docHeader+line+docFooter), nil)
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "NOMBRE SIN DESCRIPCION", inv.Lines[0].ProductName)
}
