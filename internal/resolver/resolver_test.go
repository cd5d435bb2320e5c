package resolver

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automatizaco/invoice-pipeline/internal/catalog"
	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestRemoteStrategyMatchesByReferenceCode(t *testing.T) {
	line := invoice.LineItem{ProductName: "SAL REFINADA X 500 GR", ReferenceCode: "120704", OriginalQuantity: dec("20")}
	ctx := Context{
		RemoteResults: []invoice.LookupResult{
			{ReferenceCode: "999999", BulkQuantity: dec("1"), BaseUnitQuantity: dec("50")},
			{ReferenceCode: "120704", BulkQuantity: dec("20"), BaseUnitQuantity: dec("800")},
		},
	}

	res, ok := RemoteStrategy{}.Resolve(line, ctx)
	require.True(t, ok)
	assert.Equal(t, invoice.SourceRemoteMatch, res.Source)
	assert.Equal(t, "KG", res.Unit)
	require.NotNil(t, res.Weight)
	assert.True(t, res.Weight.Equal(dec("800")))
	require.NotNil(t, res.OverrideQuantity)
	assert.True(t, res.OverrideQuantity.Equal(dec("20")))
}

func TestRemoteStrategyUsesCatalogCodeWhenXMLHasNone(t *testing.T) {
	line := invoice.LineItem{ProductName: "MAIZ AMARILLO X 40 KILOS"}
	ctx := Context{
		CatalogItem: &catalog.InventoryItem{Code: "130001", Description: "maiz amarillo x 40 kilos"},
		RemoteResults: []invoice.LookupResult{
			{ReferenceCode: "130001", BulkQuantity: dec("3"), BaseUnitQuantity: dec("120")},
		},
	}

	res, ok := RemoteStrategy{}.Resolve(line, ctx)
	require.True(t, ok)
	assert.Equal(t, "130001", res.ReferenceCode)
	assert.Equal(t, invoice.SourceRemoteMatch, res.Source)
}

func TestRemoteStrategyDeclinesWithoutCodeOrResults(t *testing.T) {
	line := invoice.LineItem{ProductName: "ALGO", ReferenceCode: "1"}

	_, ok := RemoteStrategy{}.Resolve(line, Context{})
	assert.False(t, ok, "no remote results")

	_, ok = RemoteStrategy{}.Resolve(invoice.LineItem{ProductName: "ALGO"}, Context{
		RemoteResults: []invoice.LookupResult{{ReferenceCode: "1"}},
	})
	assert.False(t, ok, "no reference code on line or catalog")

	_, ok = RemoteStrategy{}.Resolve(line, Context{
		RemoteResults: []invoice.LookupResult{{ReferenceCode: "other"}},
	})
	assert.False(t, ok, "code not present in results")
}

func TestCatalogStrategyCopiesWeight(t *testing.T) {
	item := &catalog.InventoryItem{Code: "120704", Description: "sal refinada x 500 gr", Weight: decPtr("0.5"), Unit: "KG"}
	line := invoice.LineItem{ProductName: "SAL REFINADA X 500 GR"}

	res, ok := CatalogStrategy{}.Resolve(line, Context{CatalogItem: item})
	require.True(t, ok)
	assert.Equal(t, invoice.SourceCatalogOnly, res.Source)
	assert.Equal(t, "KG", res.Unit)
	assert.Equal(t, "120704", res.ReferenceCode)
	require.NotNil(t, res.Weight)
	assert.True(t, res.Weight.Equal(dec("0.5")))
	assert.Nil(t, res.OverrideQuantity, "catalog never overrides the quantity")

	// Weight must be a copy, not an alias of the catalog entry.
	*res.Weight = dec("999")
	assert.True(t, item.Weight.Equal(dec("0.5")))
}

func TestCatalogStrategyWithoutWeight(t *testing.T) {
	item := &catalog.InventoryItem{Code: "7", Description: "cuerda", Unit: "UN"}
	res, ok := CatalogStrategy{}.Resolve(invoice.LineItem{ProductName: "CUERDA"}, Context{CatalogItem: item})
	require.True(t, ok)
	assert.Nil(t, res.Weight)
	assert.Equal(t, "UN", res.Unit)
}

func TestTextPatternStrategy(t *testing.T) {
	tests := []struct {
		name       string
		product    string
		wantOK     bool
		wantUnit   string
		wantWeight string
	}{
		{"kilos", "MAIZ AMARILLO X 40 KILOS", true, "KG", "40"},
		{"kg", "CONCENTRADO X 25 KG", true, "KG", "25"},
		{"grams converted", "SAL REFINADA X 500 GR", true, "KG", "0.5"},
		{"gramos", "PIMIENTA X 250 GRAMOS", true, "KG", "0.25"},
		{"liters", "ACEITE X 20 LITROS", true, "LT", "20"},
		{"lt", "MELAZA X 5 LT", true, "LT", "5"},
		{"units", "GUANTES X 12 UNIDADES", true, "UN", "12"},
		{"comma decimal", "BULTO X 12,5 KILOS", true, "KG", "12.5"},
		{"no space after x", "CAL X30 KG", true, "KG", "30"},
		{"no pattern", "SERVICIO DE TRANSPORTE", false, "", ""},
		{"x without number", "PRODUCTO X GRANDE", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := TextPatternStrategy{}.Resolve(invoice.LineItem{ProductName: tt.product}, Context{})
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantUnit, res.Unit)
			require.NotNil(t, res.Weight)
			assert.True(t, res.Weight.Equal(dec(tt.wantWeight)),
				"weight %s, want %s", res.Weight, tt.wantWeight)
			assert.Equal(t, invoice.SourceXMLFallback, res.Source)
		})
	}
}

func TestChainPrecedence(t *testing.T) {
	chain := DefaultChain()
	item := &catalog.InventoryItem{Code: "120704", Description: "sal refinada x 500 gr", Weight: decPtr("0.5"), Unit: "KG"}
	line := invoice.LineItem{ProductName: "SAL REFINADA X 500 GR", ReferenceCode: "120704", OriginalQuantity: dec("20")}

	// Remote data present: remote wins over catalog and text.
	res := chain.Apply(line, Context{
		CatalogItem: item,
		RemoteResults: []invoice.LookupResult{
			{ReferenceCode: "120704", BulkQuantity: dec("20"), BaseUnitQuantity: dec("800")},
		},
	})
	assert.Equal(t, invoice.SourceRemoteMatch, res.Source)

	// No remote data: catalog wins over text.
	res = chain.Apply(line, Context{CatalogItem: item})
	assert.Equal(t, invoice.SourceCatalogOnly, res.Source)

	// Neither: text pattern.
	res = chain.Apply(line, Context{})
	assert.Equal(t, invoice.SourceXMLFallback, res.Source)
	require.NotNil(t, res.Weight)
	assert.True(t, res.Weight.Equal(dec("0.5")))
}

func TestChainAlwaysTagsSource(t *testing.T) {
	res := DefaultChain().Apply(invoice.LineItem{ProductName: "SERVICIO DE TRANSPORTE"}, Context{})
	assert.Equal(t, invoice.SourceXMLFallback, res.Source)
	assert.Nil(t, res.Weight)
	assert.Empty(t, res.Unit)
}
