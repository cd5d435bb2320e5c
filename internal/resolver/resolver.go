// =============================================================================
// Invoice Pipeline - Resolution Strategies
// =============================================================================
//
// This module decides, for a single invoice line, where its final unit of
// measure and weight/converted-quantity come from. The precedence rules are
// expressed as an explicit ordered list of strategies rather than nested
// conditionals, so each rule is testable in isolation and the precedence law
// (Remote > Catalog > TextPattern) is visible in one place:
//
//   1. RemoteStrategy      - authoritative bulk/base quantities from the
//                            remote service, matched by reference code
//   2. CatalogStrategy     - weight/unit from the reference catalog entry
//   3. TextPatternStrategy - packaging pattern in the product name itself
//                            (e.g. "... X 40 KILOS")
//
// Each strategy is a pure function (line, context) -> (Resolution, ok); the
// chain tries them in order and stops at the first success. When every
// strategy declines, the line still receives a resolution tagged XML_FALLBACK
// with absent weight/unit; no line ever leaves the chain untagged.
//
// =============================================================================

package resolver

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/automatizaco/invoice-pipeline/internal/catalog"
	"github.com/automatizaco/invoice-pipeline/internal/invoice"
)

// =============================================================================
// CONTEXT AND RESOLUTION
// =============================================================================

// Context carries the per-line enrichment inputs the pipeline has gathered:
// the catalog entry matched by description (nil when none) and the remote
// results fetched once for the whole invoice (nil or empty when the service
// had nothing, failed, or was not configured).
type Context struct {
	CatalogItem   *catalog.InventoryItem
	RemoteResults []invoice.LookupResult
}

// ReferenceCode returns the code to query remote data with: the XML-native
// code when the document carries one, otherwise the catalog entry's code.
func (c Context) ReferenceCode(line invoice.LineItem) string {
	if line.ReferenceCode != "" {
		return line.ReferenceCode
	}
	if c.CatalogItem != nil {
		return c.CatalogItem.Code
	}
	return ""
}

// Resolution is the outcome of a strategy for one line.
type Resolution struct {
	// Unit is the resolved unit of measure, empty when unknown.
	Unit string

	// Weight is the resolved weight or converted quantity, nil when no
	// value could be derived.
	Weight *decimal.Decimal

	// OverrideQuantity replaces the line's original quantity when set.
	// Only the remote strategy produces it (bulk quantity).
	OverrideQuantity *decimal.Decimal

	// ReferenceCode is the code the resolution was keyed on, recorded back
	// onto the line for the export.
	ReferenceCode string

	// Source tags which policy produced this resolution.
	Source invoice.QuantitySource
}

// Strategy resolves one line against the gathered context. ok reports
// whether the strategy produced a resolution; a false return means "try the
// next one".
type Strategy interface {
	Name() string
	Resolve(line invoice.LineItem, ctx Context) (Resolution, bool)
}

// =============================================================================
// REMOTE STRATEGY
// =============================================================================

// RemoteStrategy applies the authoritative remote data: when the remote
// result set contains an entry whose reference code exactly equals the
// line's code, the unit is fixed to KG, the weight becomes the base-unit
// (kilogram) quantity and the original quantity is overridden with the bulk
// (packaging-unit) quantity.
type RemoteStrategy struct{}

func (RemoteStrategy) Name() string { return "remote" }

func (RemoteStrategy) Resolve(line invoice.LineItem, ctx Context) (Resolution, bool) {
	code := ctx.ReferenceCode(line)
	if code == "" || len(ctx.RemoteResults) == 0 {
		return Resolution{}, false
	}

	for _, result := range ctx.RemoteResults {
		if result.ReferenceCode != code {
			continue
		}
		base := result.BaseUnitQuantity
		bulk := result.BulkQuantity
		return Resolution{
			Unit:             "KG",
			Weight:           &base,
			OverrideQuantity: &bulk,
			ReferenceCode:    code,
			Source:           invoice.SourceRemoteMatch,
		}, true
	}

	return Resolution{}, false
}

// =============================================================================
// CATALOG STRATEGY
// =============================================================================

// CatalogStrategy applies the reference catalog entry matched by normalized
// description. It never overrides the original quantity.
type CatalogStrategy struct{}

func (CatalogStrategy) Name() string { return "catalog" }

func (CatalogStrategy) Resolve(line invoice.LineItem, ctx Context) (Resolution, bool) {
	item := ctx.CatalogItem
	if item == nil {
		return Resolution{}, false
	}

	res := Resolution{
		Unit:          item.Unit,
		ReferenceCode: ctx.ReferenceCode(line),
		Source:        invoice.SourceCatalogOnly,
	}
	if item.Weight != nil {
		w := *item.Weight
		res.Weight = &w
	}
	return res, true
}

// =============================================================================
// TEXT PATTERN STRATEGY
// =============================================================================

// packagingPattern recognizes the trailing packaging convention of the
// supplier product names: "X <number> <unit>", e.g. "MAIZ AMARILLO X 40
// KILOS" or "SAL REFINADA X 500 GR".
var packagingPattern = regexp.MustCompile(
	`(?i)\bX\s*(\d+(?:[.,]\d+)?)\s*(KILOS?|KGS?|KG|GRAMOS?|GRS?|GR|LITROS?|LTS?|LT|UNIDADES?|UN)\b`)

var thousand = decimal.NewFromInt(1000)

// TextPatternStrategy derives weight/unit from the product name text when
// both the catalog and the remote service failed to resolve the line. Gram
// values are converted to kilograms so the exported unit stays canonical.
type TextPatternStrategy struct{}

func (TextPatternStrategy) Name() string { return "text-pattern" }

func (TextPatternStrategy) Resolve(line invoice.LineItem, ctx Context) (Resolution, bool) {
	m := packagingPattern.FindStringSubmatch(line.ProductName)
	if m == nil {
		return Resolution{}, false
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return Resolution{}, false
	}

	var unit string
	switch strings.ToUpper(m[2])[0] {
	case 'K':
		unit = "KG"
	case 'G':
		unit = "KG"
		value = value.Div(thousand)
	case 'L':
		unit = "LT"
	default:
		unit = "UN"
	}

	return Resolution{
		Unit:          unit,
		Weight:        &value,
		ReferenceCode: ctx.ReferenceCode(line),
		Source:        invoice.SourceXMLFallback,
	}, true
}

// =============================================================================
// CHAIN
// =============================================================================

// Chain is an ordered strategy list.
type Chain []Strategy

// DefaultChain returns the production precedence: Remote > Catalog >
// TextPattern.
func DefaultChain() Chain {
	return Chain{RemoteStrategy{}, CatalogStrategy{}, TextPatternStrategy{}}
}

// Apply runs the chain for one line and always produces a tagged resolution:
// when every strategy declines, the result is an XML_FALLBACK resolution
// with absent weight and unit.
func (c Chain) Apply(line invoice.LineItem, ctx Context) Resolution {
	for _, strategy := range c {
		if res, ok := strategy.Resolve(line, ctx); ok {
			return res
		}
	}
	return Resolution{
		ReferenceCode: ctx.ReferenceCode(line),
		Source:        invoice.SourceXMLFallback,
	}
}
