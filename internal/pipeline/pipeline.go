// =============================================================================
// Invoice Pipeline - Reconciliation Orchestrator
// =============================================================================
//
// This module ties the stages together for a single document: parse the UBL
// XML, fetch remote bulk quantities once per invoice, then resolve every line
// through the strategy chain (Remote > Catalog > TextPattern).
//
// GUARANTEES:
//   - The remote service is queried AT MOST ONCE per invoice, regardless of
//     line count; the result set is shared across all lines.
//   - A remote failure never blocks processing: the LookupError is recorded
//     as a document-level warning and enrichment continues with the catalog
//     and text-pattern strategies only.
//   - Every line leaves enrichment with a non-empty Source tag.
//   - Lines are independent: enriching one never reads or writes another.
//
// =============================================================================

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/automatizaco/invoice-pipeline/internal/catalog"
	"github.com/automatizaco/invoice-pipeline/internal/invoice"
	"github.com/automatizaco/invoice-pipeline/internal/resolver"
	"github.com/automatizaco/invoice-pipeline/internal/ublparser"
)

// RemoteLookup is the slice of the remote client the pipeline needs. The
// production implementation is *remote.Client; tests substitute fakes.
type RemoteLookup interface {
	Lookup(ctx context.Context, invoiceNumber string) ([]invoice.LookupResult, error)
}

// Processor enriches parsed invoices. Construct one per run and share it
// across documents; it holds no per-invoice state.
type Processor struct {
	catalog *catalog.Catalog
	remote  RemoteLookup
	chain   resolver.Chain
	logger  *zap.Logger
}

// New creates a processor.
//
// PARAMETERS:
//   - cat:    the loaded reference catalog. Must not be nil; pass an empty
//     catalog when no workbook is configured.
//   - remote: the bulk-quantity client, or nil when remote enrichment is
//     disabled (offline mode, --no-remote).
//   - logger: structured logger; nil falls back to a no-op logger.
func New(cat *catalog.Catalog, remote RemoteLookup, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		catalog: cat,
		remote:  remote,
		chain:   resolver.DefaultChain(),
		logger:  logger,
	}
}

// Process parses one UBL document and enriches its lines. Parse failures
// propagate as *ublparser.ParseError; everything past parsing is recoverable
// and surfaces as warnings on the invoice.
func (p *Processor) Process(ctx context.Context, xmlBytes []byte) (*invoice.Invoice, error) {
	inv, err := ublparser.Parse(xmlBytes, p.logger)
	if err != nil {
		return nil, err
	}
	p.Enrich(ctx, inv)
	return inv, nil
}

// Enrich resolves unit, weight and quantity for every line of an already
// parsed invoice, in place. After Enrich returns, every line carries a
// non-empty Source.
func (p *Processor) Enrich(ctx context.Context, inv *invoice.Invoice) {
	remoteResults := p.fetchRemote(ctx, inv)

	var bySource [3]int
	for i := range inv.Lines {
		line := &inv.Lines[i]

		lineCtx := resolver.Context{RemoteResults: remoteResults}
		if item, ok := p.catalog.FindByDescription(line.ProductName); ok {
			lineCtx.CatalogItem = &item
		}

		res := p.chain.Apply(*line, lineCtx)

		line.Source = res.Source
		line.ResolvedUnit = res.Unit
		line.ResolvedWeight = res.Weight
		if res.ReferenceCode != "" {
			line.ReferenceCode = res.ReferenceCode
		}
		if res.OverrideQuantity != nil {
			line.OriginalQuantity = *res.OverrideQuantity
		}

		switch res.Source {
		case invoice.SourceRemoteMatch:
			bySource[0]++
		case invoice.SourceCatalogOnly:
			bySource[1]++
		default:
			bySource[2]++
		}
	}

	p.logger.Info("invoice enriched",
		zap.String("invoice", inv.InvoiceNumber),
		zap.Int("lines", len(inv.Lines)),
		zap.Int("remote_match", bySource[0]),
		zap.Int("catalog_only", bySource[1]),
		zap.Int("xml_fallback", bySource[2]))
}

// fetchRemote performs the single per-invoice remote query. Both "service
// disabled", "no data" and "service failed" come back as an empty slice; a
// failure additionally records a document-level warning.
func (p *Processor) fetchRemote(ctx context.Context, inv *invoice.Invoice) []invoice.LookupResult {
	if p.remote == nil {
		return nil
	}

	results, err := p.remote.Lookup(ctx, inv.InvoiceNumber)
	if err != nil {
		// Fail-open: a lookup error is the same as "no remote data".
		p.logger.Warn("remote lookup failed, continuing without remote data",
			zap.String("invoice", inv.InvoiceNumber),
			zap.Error(err))
		inv.Warnings = append(inv.Warnings, invoice.Warning{
			Message: "remote lookup failed: " + err.Error(),
		})
		return nil
	}
	return results
}
