// =============================================================================
// Invoice Pipeline - Catalog Command
// =============================================================================
//
// This file defines the 'catalog' command group for inspecting the product
// reference catalog outside of a processing run.
//
// COMMAND USAGE:
//   invoice-pipeline catalog import <workbook.xlsx>
//   invoice-pipeline catalog stats
//
// 'import' performs a trial import of a workbook and reports what would be
// loaded; 'stats' summarizes the workbook named in the configuration.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/automatizaco/invoice-pipeline/internal/catalog"
	"github.com/automatizaco/invoice-pipeline/internal/config"
)

// catalogCmd groups the catalog subcommands.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the product reference catalog",
}

// catalogImportCmd validates a workbook by importing it.
var catalogImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Validate a catalog workbook by importing it",
	Long: `Import reads the given XLSX workbook with the same rules the process
command uses (header auto-detection, comma decimal separators, empty
descriptions skipped) and reports how many items it would load. Nothing is
persisted; the catalog lives in memory per run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogImport(args[0])
	},
}

// catalogStatsCmd summarizes the configured catalog.
var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the configured catalog workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, true)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Catalog.Path == "" {
			return fmt.Errorf("no catalog configured (catalog.path)")
		}
		return runCatalogImport(cfg.Catalog.Path)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
}

// runCatalogImport imports the workbook and prints its statistics.
func runCatalogImport(workbook string) error {
	if err := initLogger("info"); err != nil {
		return err
	}
	defer logger.Sync()

	cat := catalog.NewWithOptions(catalog.Options{Logger: logger})
	count, err := cat.ImportFile(workbook)
	if err != nil {
		return err
	}

	stats := cat.Stats()
	fmt.Printf("Catalog: %s\n", workbook)
	fmt.Printf("  Items imported:  %d\n", count)
	fmt.Printf("  With weight:     %d\n", stats.WithWeight)
	fmt.Printf("  Without weight:  %d\n", stats.WithoutWeight)
	return nil
}
