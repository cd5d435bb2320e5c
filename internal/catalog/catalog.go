// =============================================================================
// Invoice Pipeline - Reference Catalog
// =============================================================================
//
// This module is responsible for importing the product reference catalog from
// an XLSX workbook and answering description lookups during enrichment. The
// catalog maps a normalized product description to an inventory item carrying
// the reference code, weight and unit of measure.
//
// WORKBOOK STRUCTURE (Expected Columns):
//   The importer expects a header row naming, at minimum, a description
//   column. Header matching is case-insensitive and ignores spaces and
//   slashes, so the original supplier headers keep working:
//
//   | Codigo   | Descripcion               | PESO | U/M |
//   |----------|---------------------------|------|-----|
//   | PROD-001 | SAL REFINADA X 500 GR     | 0.5  | KG  |
//   | PROD-002 | AZUCAR BLANCA X 1000 GR   | 1.0  | KG  |
//
//   English headers (Code, Description, Weight, Unit) are accepted as
//   aliases for the same roles.
//
// IMPORT SEMANTICS:
//   - A missing description column fails the import with ImportError and
//     leaves the previously loaded catalog untouched.
//   - Rows with an empty description are skipped, not an error.
//   - A successful import replaces the catalog wholesale; there is no merge.
//
// CONCURRENCY:
//   Lookups against a loaded catalog are read-only and safe for concurrent
//   readers. Import is a write operation and must not run concurrently with
//   reads; the host serializes it (startup, or an explicit reload action).
//
// =============================================================================

package catalog

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/automatizaco/invoice-pipeline/internal/normalizer"
)

// =============================================================================
// ERRORS
// =============================================================================

// ImportError reports a catalog source that could not be imported: the file
// is unreadable or the required description column is absent. The catalog is
// left in its prior state when an ImportError is returned.
type ImportError struct {
	// Source is the workbook path or sheet the import was reading.
	Source string

	// Reason describes what was wrong with the source.
	Reason string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog import %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("catalog import %s: %s", e.Source, e.Reason)
}

func (e *ImportError) Unwrap() error { return e.Err }

// =============================================================================
// INVENTORY ITEM
// =============================================================================

// InventoryItem is one product of the reference catalog. Items are immutable
// once loaded; re-importing replaces them wholesale.
type InventoryItem struct {
	// Code is the reference code used to query the remote service.
	// Empty when the catalog row carried no code.
	Code string

	// Description is the product description as written in the workbook.
	// It is the match key (after normalization).
	Description string

	// Weight is the product weight in the catalog's unit, nil when the
	// cell was empty or unparseable.
	Weight *decimal.Decimal

	// Unit is the unit of measure (KG, LT, UN, ...), free text.
	Unit string
}

// =============================================================================
// COLUMN ROLES
// =============================================================================

// columnRole enumerates the recognized catalog columns. Each role is resolved
// to a column index exactly once at import time; rows are never accessed by
// ad hoc header strings afterwards.
type columnRole int

const (
	roleCode columnRole = iota
	roleDescription
	roleWeight
	roleUnit
)

// headerAliases maps each role to the accepted header spellings. Matching is
// case-insensitive and ignores spaces and slashes (so "U/M", "u m" and "UM"
// are the same header).
var headerAliases = map[columnRole][]string{
	roleCode:        {"code", "codigo"},
	roleDescription: {"description", "descripcion"},
	roleWeight:      {"weight", "peso"},
	roleUnit:        {"unit", "um", "unidad", "unidadmedida"},
}

// canonicalHeader strips the characters header matching ignores.
func canonicalHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "/", "")
	return h
}

// resolveColumns maps each recognized role to its column index in the header
// row. Roles whose header is absent are simply missing from the map; only
// the description role is mandatory and that is enforced by the caller.
func resolveColumns(headers []string) map[columnRole]int {
	resolved := make(map[columnRole]int)

	for idx, header := range headers {
		canon := canonicalHeader(header)
		if canon == "" {
			continue
		}
		for role, aliases := range headerAliases {
			if _, done := resolved[role]; done {
				continue
			}
			for _, alias := range aliases {
				if canon == alias {
					resolved[role] = idx
					break
				}
			}
		}
	}

	return resolved
}

// =============================================================================
// CATALOG
// =============================================================================

// Stats summarizes the loaded catalog. Computed on demand from the current
// state.
type Stats struct {
	Total         int
	WithWeight    int
	WithoutWeight int
}

// Options configures optional catalog behavior.
type Options struct {
	// FuzzyMaxDistance enables closest-match lookup when an exact
	// normalized match fails. Zero (the default) disables fuzzy matching
	// entirely; exact match is the safe default.
	FuzzyMaxDistance int

	// Logger receives row-level import diagnostics. Nil is allowed.
	Logger *zap.Logger
}

// Catalog is the in-memory product reference table, keyed by normalized
// description. Build one with New, load it with ImportFile, and share it
// read-only across invoice processing.
type Catalog struct {
	items            map[string]InventoryItem
	fuzzyMaxDistance int
	logger           *zap.Logger
}

// New creates an empty catalog with default options (exact matching only).
func New() *Catalog {
	return NewWithOptions(Options{})
}

// NewWithOptions creates an empty catalog with the given options.
func NewWithOptions(opts Options) *Catalog {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		items:            make(map[string]InventoryItem),
		fuzzyMaxDistance: opts.FuzzyMaxDistance,
		logger:           logger,
	}
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportFile reads an XLSX workbook and replaces the catalog contents with
// the rows of its first sheet.
//
// RETURNS:
//   - The number of items imported.
//   - An ImportError when the file cannot be read or lacks a description
//     column; the catalog keeps its previous contents in that case.
func (c *Catalog) ImportFile(path string) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, &ImportError{Source: path, Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return 0, &ImportError{Source: path, Reason: "workbook has no sheets"}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, &ImportError{Source: path, Reason: "cannot read rows", Err: err}
	}

	return c.ImportRows(path, rows)
}

// ImportRows replaces the catalog contents from already-read tabular data.
// The first row is the header row; the rest are data rows. Exposed so the
// import semantics can be exercised without a workbook on disk.
func (c *Catalog) ImportRows(source string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, &ImportError{Source: source, Reason: "source is empty"}
	}

	columns := resolveColumns(rows[0])
	descCol, ok := columns[roleDescription]
	if !ok {
		return 0, &ImportError{Source: source, Reason: "required column \"Description\" not found"}
	}

	// Build the replacement map first; the live catalog is only swapped on
	// success so a failed import leaves prior state intact.
	next := make(map[string]InventoryItem)
	imported := 0

	for i := 1; i < len(rows); i++ {
		row := rows[i]

		description := cellAt(row, descCol)
		if description == "" {
			// Rows without a description are skipped, not an error.
			continue
		}

		item := InventoryItem{Description: description}

		if col, ok := columns[roleCode]; ok {
			item.Code = cellAt(row, col)
		}
		if col, ok := columns[roleUnit]; ok {
			item.Unit = cellAt(row, col)
		}
		if col, ok := columns[roleWeight]; ok {
			if raw := cellAt(row, col); raw != "" {
				weight, err := parseWeight(raw)
				if err != nil {
					c.logger.Warn("catalog row has unparseable weight",
						zap.Int("row", i+1),
						zap.String("weight", raw))
				} else {
					item.Weight = &weight
				}
			}
		}

		next[normalizer.Normalize(description)] = item
		imported++
	}

	c.items = next

	c.logger.Info("catalog imported",
		zap.String("source", source),
		zap.Int("items", imported))

	return imported, nil
}

// cellAt returns the trimmed cell value, tolerating short rows (excelize
// omits trailing empty cells).
func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// parseWeight parses a weight cell, accepting comma as decimal separator as
// the supplier workbooks use.
func parseWeight(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
}

// =============================================================================
// LOOKUP
// =============================================================================

// FindByDescription looks up an item by exact match against normalized
// descriptions. When fuzzy matching is enabled via Options.FuzzyMaxDistance
// and the exact lookup misses, the closest entry within the configured
// Levenshtein distance is returned instead.
func (c *Catalog) FindByDescription(name string) (InventoryItem, bool) {
	key := normalizer.Normalize(name)
	if key == "" {
		return InventoryItem{}, false
	}

	if item, ok := c.items[key]; ok {
		return item, true
	}

	if c.fuzzyMaxDistance > 0 {
		return c.findClosest(key)
	}

	return InventoryItem{}, false
}

// findClosest scans the catalog for the entry with the smallest Levenshtein
// distance to the normalized key, within the configured maximum. Ties keep
// the first minimum encountered.
func (c *Catalog) findClosest(key string) (InventoryItem, bool) {
	best := c.fuzzyMaxDistance + 1
	var found InventoryItem

	for candidate, item := range c.items {
		dist := levenshtein.ComputeDistance(key, candidate)
		if dist < best {
			best = dist
			found = item
		}
	}

	if best <= c.fuzzyMaxDistance {
		return found, true
	}
	return InventoryItem{}, false
}

// =============================================================================
// STATS
// =============================================================================

// Stats computes summary counters over the current catalog contents.
func (c *Catalog) Stats() Stats {
	stats := Stats{Total: len(c.items)}
	for _, item := range c.items {
		if item.Weight != nil {
			stats.WithWeight++
		}
	}
	stats.WithoutWeight = stats.Total - stats.WithWeight
	return stats
}
