// =============================================================================
// Invoice Pipeline - Text Normalizer
// =============================================================================
//
// This package provides the single text normalization used by every matching
// stage of the pipeline. Catalog lookups, remote reference comparison and any
// description-based matching all normalize through this function; no other
// component may invent its own normalization, otherwise a description that
// matches in one stage could silently miss in another.
//
// =============================================================================

package normalizer

import "strings"

// Normalize case-folds a product description and collapses internal
// whitespace runs into single spaces, trimming the ends. It is total: empty
// input yields the empty string and it never fails.
//
// Examples:
//
//	Normalize("  SAL  Refinada X 500 GR ") == "sal refinada x 500 gr"
//	Normalize("") == ""
func Normalize(text string) string {
	// strings.Fields splits on any run of Unicode whitespace, which both
	// trims and collapses in a single pass.
	fields := strings.Fields(strings.ToLower(text))
	return strings.Join(fields, " ")
}
