package csvexport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func sampleInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		InvoiceNumber: "2B-285138",
		IssueDate:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC),
		SellerNIT:     "800221724",
		SellerName:    "PRODUCTORA SOMEX S.A.S",
		BuyerNIT:      "900123456",
		BuyerName:     "COMPRAS DEL ORIENTE SAS",
		Municipality:  "Medellín",
		Currency:      "COP",
		Lines: []invoice.LineItem{
			{
				ProductName:      "SAL REFINADA X 500 GR",
				ReferenceCode:    "120704",
				OriginalQuantity: dec("20"),
				UnitPrice:        dec("1850"),
				XMLUnitCode:      "KGM",
				TaxPercentage:    dec("19"),
				ResolvedUnit:     "KG",
				ResolvedWeight:   decPtr("800"),
				Source:           invoice.SourceRemoteMatch,
			},
			{
				ProductName:      "SERVICIO DE TRANSPORTE",
				OriginalQuantity: dec("1"),
				UnitPrice:        dec("50000"),
				XMLUnitCode:      "UN",
				Source:           invoice.SourceXMLFallback,
			},
		},
	}
}

// readBack parses the written file, checking and stripping the BOM.
func readBack(t *testing.T, path string, delimiter rune) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "\xef\xbb\xbf"), "file must start with a UTF-8 BOM")

	r := csv.NewReader(strings.NewReader(string(raw[3:])))
	r.Comma = delimiter
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	err := New(Options{}).ExportFile(path, []*invoice.Invoice{sampleInvoice()})
	require.NoError(t, err)

	records := readBack(t, path, ';')
	require.Len(t, records, 3, "header + one row per line item")

	header := records[0]
	require.Len(t, header, 23)
	assert.Equal(t, "N° Factura", header[0])
	assert.Equal(t, "Cantidad Original", header[20])
	assert.Equal(t, "Moneda", header[21])
	assert.Equal(t, "Fuente Cantidad", header[22])

	salt := records[1]
	assert.Equal(t, "2B-285138", salt[0])
	assert.Equal(t, "SAL REFINADA X 500 GR", salt[1])
	assert.Equal(t, "120704", salt[2])
	assert.Equal(t, "KG", salt[3])
	assert.Equal(t, "800,00000", salt[4], "resolved weight with comma separator")
	assert.Equal(t, "1850,00000", salt[5])
	assert.Equal(t, "2025-03-14", salt[6])
	assert.Equal(t, "2025-04-13", salt[7])
	assert.Equal(t, "900123456", salt[8])
	assert.Equal(t, "19", salt[14])
	assert.Equal(t, "20,00000", salt[20], "original quantity preserved")
	assert.Equal(t, "1", salt[21], "COP maps to numeric code 1")
	assert.Equal(t, "REMOTE_MATCH", salt[22])

	service := records[2]
	assert.Equal(t, "UN", service[3], "XML unitCode fallback when nothing resolved")
	assert.Equal(t, "1,00000", service[4], "quantity falls back to the invoiced value")
	assert.Equal(t, "0", service[14], "absent tax exports as zero")
	assert.Equal(t, "XML_FALLBACK", service[22])
}

func TestExportCustomFormatting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	err := New(Options{Delimiter: ',', DecimalPlaces: 2, DecimalSeparator: "."}).
		ExportFile(path, []*invoice.Invoice{sampleInvoice()})
	require.NoError(t, err)

	records := readBack(t, path, ',')
	assert.Equal(t, "800.00", records[1][4])
	assert.Equal(t, "1850.00", records[1][5])
}

func TestExportNoInvoicesIsError(t *testing.T) {
	err := New(Options{}).ExportFile(filepath.Join(t.TempDir(), "out.csv"), nil)
	require.Error(t, err)
}

func TestExportEmptyInvoiceWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	empty := &invoice.Invoice{InvoiceNumber: "2B-0"}
	err := New(Options{}).ExportFile(path, []*invoice.Invoice{empty})
	require.NoError(t, err)

	records := readBack(t, path, ';')
	assert.Len(t, records, 1)
}

func TestExportCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "out.csv")
	err := New(Options{}).ExportFile(path, []*invoice.Invoice{sampleInvoice()})
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
