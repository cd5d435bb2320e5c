// =============================================================================
// Invoice Pipeline - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the reconciliation
// pipeline over the input directory (or a single file).
//
// COMMAND USAGE:
//   invoice-pipeline process [flags]
//
// FLAGS:
//   --dry-run    : Parse and enrich but write no outputs, archive nothing,
//                  mark nothing as processed
//   --single     : Process only a single file (specify with --file)
//   --file       : Path to a specific .xml or .zip to process
//   --no-remote  : Skip remote enrichment even when configured
//   --catalog    : Catalog workbook path, overriding the configuration
//
// PROCESSING PIPELINE:
//   1. Load configuration, logger, ledger, catalog and remote client
//   2. Discover input files (.xml documents, .zip bundles)
//   3. For each XML payload:
//      a. Skip it when the ledger already knows its content hash
//      b. Parse and enrich (remote > catalog > text pattern)
//   4. Export one consolidated CSV (and Excel report) for the run
//   5. Mark exported documents in the ledger, archive the inputs
//   6. Write the run summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/automatizaco/invoice-pipeline/internal/catalog"
	"github.com/automatizaco/invoice-pipeline/internal/config"
	"github.com/automatizaco/invoice-pipeline/internal/csvexport"
	"github.com/automatizaco/invoice-pipeline/internal/invoice"
	"github.com/automatizaco/invoice-pipeline/internal/pipeline"
	"github.com/automatizaco/invoice-pipeline/internal/remote"
	"github.com/automatizaco/invoice-pipeline/internal/store"
	"github.com/automatizaco/invoice-pipeline/internal/xlsxexport"
	"github.com/automatizaco/invoice-pipeline/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun parses and enriches without writing outputs or moving files.
var dryRun bool

// singleFile indicates whether to process only a single file.
var singleFile bool

// filePath is the path to a specific file to process (used with --single).
var filePath string

// noRemote disables remote enrichment for this run.
var noRemote bool

// catalogPath overrides the configured catalog workbook.
var catalogPath string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process invoice XML files and export reconciled CSV",
	Long: `The process command scans the input directory for UBL invoice documents
(.xml) and bundles (.zip), enriches every line item against the reference
catalog and the remote bulk-quantity service, and writes one consolidated
CSV (plus an Excel report) for the run.

Documents already recorded in the processed-document ledger are skipped, so
reprocessing a directory is safe.

On successful processing:
  - The CSV and Excel report are placed in the output directory
  - The inputs are moved to the archive directory
  - Each document's content hash is recorded in the ledger
  - A summary report is written

On error:
  - The failing file stays in the input directory for the next run
  - Processing continues for the remaining files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Parse and enrich without writing outputs or moving files",
	)

	processCmd.Flags().BoolVar(
		&singleFile,
		"single",
		false,
		"Process only a single file (use with --file)",
	)

	processCmd.Flags().StringVar(
		&filePath,
		"file",
		"",
		"Path to a specific .xml or .zip to process (used with --single)",
	)

	processCmd.Flags().BoolVar(
		&noRemote,
		"no-remote",
		false,
		"Skip remote enrichment even when configured",
	)

	processCmd.Flags().StringVar(
		&catalogPath,
		"catalog",
		"",
		"Catalog workbook path, overriding the configuration",
	)
}

// =============================================================================
// RUN STATE
// =============================================================================

// document is one XML payload queued for processing, with enough provenance
// to record it in the ledger afterwards.
type document struct {
	content     []byte
	filename    string
	zipFilename string
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess orchestrates one pipeline run.
func runProcess(ctx context.Context) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: CONFIGURATION AND COLLABORATORS
	// =========================================================================

	cfg, err := config.Load(cfgFile, true)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := initLogger(cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.ArchiveDir)
	fm.ArchiveOnSuccess = !dryRun
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	ledger, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	cat := catalog.NewWithOptions(catalog.Options{
		FuzzyMaxDistance: cfg.Catalog.FuzzyMaxDistance,
		Logger:           logger,
	})
	workbook := cfg.Catalog.Path
	if catalogPath != "" {
		workbook = catalogPath
	}
	if workbook != "" {
		count, err := cat.ImportFile(workbook)
		if err != nil {
			return fmt.Errorf("failed to import catalog: %w", err)
		}
		fmt.Printf("Loaded %d catalog item(s) from %s\n", count, workbook)
	} else {
		logger.Warn("no catalog configured, lines resolve via remote or text pattern only")
	}

	var remoteClient pipeline.RemoteLookup
	if cfg.Remote.Enabled && !noRemote {
		remoteClient = remote.NewClient(remote.Config{
			BaseURL:  cfg.Remote.BaseURL,
			Username: cfg.Remote.Username,
			Password: cfg.Remote.Password,
			Timeout:  cfg.Remote.Timeout(),
		}, logger)
	}

	processor := pipeline.New(cat, remoteClient, logger)

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if singleFile {
		if filePath == "" {
			return fmt.Errorf("--single requires --file")
		}
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = fm.DiscoverInputFiles()
		if err != nil {
			return err
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No invoice files found in the input directory.")
		return nil
	}
	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: PARSE AND ENRICH
	// =========================================================================

	summary := utils.ProcessingSummary{StartTime: startTime, TotalFiles: len(inputFiles)}

	var invoices []*invoice.Invoice
	var exported []document
	processedInputs := make(map[string]bool)

	for _, input := range inputFiles {
		docs, err := loadDocuments(input)
		if err != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    input,
				ErrorMessage: err.Error(),
			})
			fmt.Printf("  ✗ %s: %v\n", filepath.Base(input), err)
			continue
		}

		fileOK := true
		for _, doc := range docs {
			known, err := ledger.IsProcessed(ctx, doc.content)
			if err != nil {
				return err
			}
			if known {
				summary.SkippedDupes++
				logger.Info("skipping already-processed document",
					zap.String("file", doc.filename))
				continue
			}

			inv, err := processor.Process(ctx, doc.content)
			if err != nil {
				fileOK = false
				summary.FailedFiles++
				summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
					InputFile:    doc.filename,
					ErrorMessage: err.Error(),
				})
				fmt.Printf("  ✗ %s: %v\n", doc.filename, err)
				continue
			}

			invoices = append(invoices, inv)
			exported = append(exported, doc)
			tally(&summary, inv)
			fmt.Printf("  ✓ %s (%s, %d line(s))\n", doc.filename, inv.InvoiceNumber, len(inv.Lines))
		}

		processedInputs[input] = fileOK
	}

	// =========================================================================
	// STEP 4: EXPORT
	// =========================================================================

	var outputPath string
	if len(invoices) > 0 && !dryRun {
		outputPath = filepath.Join(cfg.OutputDir,
			utils.GenerateOutputFileName(cfg.OutputNameFormat, nil))

		exporter := csvexport.New(csvexport.Options{
			Delimiter:        cfg.CSV.DelimiterRune(),
			DecimalPlaces:    cfg.CSV.DecimalPlaces,
			DecimalSeparator: cfg.CSV.DecimalSeparator,
		})
		if err := exporter.ExportFile(outputPath, invoices); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", outputPath)

		if !cfg.DisableExcelReport {
			reportPath := outputPath[:len(outputPath)-len(filepath.Ext(outputPath))] + ".xlsx"
			if err := xlsxexport.New().ExportFile(reportPath, invoices); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", reportPath)
		}
	}

	// =========================================================================
	// STEP 5: LEDGER AND ARCHIVAL
	// =========================================================================

	if !dryRun {
		for i, doc := range exported {
			err := ledger.MarkProcessed(ctx, doc.content, store.Record{
				Filename:      doc.filename,
				ZipFilename:   doc.zipFilename,
				InvoiceNumber: invoices[i].InvoiceNumber,
				OutputFile:    outputPath,
			})
			if err != nil {
				return err
			}
		}

		for _, input := range inputFiles {
			if !processedInputs[input] {
				continue
			}
			if _, err := fm.ArchiveInputFile(input); err != nil {
				logger.Warn("failed to archive input",
					zap.String("file", input), zap.Error(err))
			}
		}
	}

	// =========================================================================
	// STEP 6: SUMMARY
	// =========================================================================

	summary.EndTime = time.Now()

	if !dryRun {
		if _, err := utils.WriteSummaryLog(summary, cfg.OutputDir); err != nil {
			logger.Warn("failed to write summary log", zap.Error(err))
		}
	}

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Input files:        %d\n", summary.TotalFiles)
	fmt.Printf("Invoices:           %d\n", summary.TotalInvoices)
	fmt.Printf("Line items:         %d\n", summary.TotalLines)
	fmt.Printf("Remote matches:     %d\n", summary.RemoteMatches)
	fmt.Printf("Catalog only:       %d\n", summary.CatalogOnly)
	fmt.Printf("XML fallback:       %d\n", summary.XMLFallback)
	fmt.Printf("Skipped duplicates: %d\n", summary.SkippedDupes)
	fmt.Printf("Failed:             %d\n", summary.FailedFiles)
	fmt.Printf("Time elapsed:       %s\n", summary.EndTime.Sub(summary.StartTime))

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadDocuments expands one input file into its XML payloads: a .xml file is
// one document, a .zip bundle contributes every XML member.
func loadDocuments(input string) ([]document, error) {
	switch ext := filepath.Ext(input); {
	case strings.EqualFold(ext, ".zip"):
		entries, err := utils.ExtractZipXML(input)
		if err != nil {
			return nil, err
		}
		docs := make([]document, 0, len(entries))
		for _, entry := range entries {
			docs = append(docs, document{
				content:     entry.Content,
				filename:    entry.Name,
				zipFilename: filepath.Base(input),
			})
		}
		return docs, nil

	case strings.EqualFold(ext, ".xml"):
		content, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", input, err)
		}
		return []document{{content: content, filename: filepath.Base(input)}}, nil

	default:
		return nil, fmt.Errorf("unsupported input type %q", ext)
	}
}

// tally accumulates an invoice's line counts into the run summary.
func tally(summary *utils.ProcessingSummary, inv *invoice.Invoice) {
	summary.TotalInvoices++
	summary.TotalLines += len(inv.Lines)
	for _, line := range inv.Lines {
		switch line.Source {
		case invoice.SourceRemoteMatch:
			summary.RemoteMatches++
		case invoice.SourceCatalogOnly:
			summary.CatalogOnly++
		default:
			summary.XMLFallback++
		}
	}
}
