// =============================================================================
// Invoice Pipeline - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoice-pipeline)
//   ├── processCmd (invoice-pipeline process)
//   ├── catalogCmd (invoice-pipeline catalog)
//   │   ├── catalogImportCmd (invoice-pipeline catalog import)
//   │   └── catalogStatsCmd  (invoice-pipeline catalog stats)
//   └── versionCmd (invoice-pipeline version)
//
// The root command owns the global flags (--config, --verbose) and the zap
// logger shared by all subcommands.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose forces debug-level logging regardless of the configured level.
var verbose bool

// logger is the shared application logger, built by initLogger before any
// subcommand runs its work.
var logger *zap.Logger

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "invoice-pipeline",
	Short: "Invoice Pipeline - Reconcile UBL invoices against reference data and export CSV",

	Long: `Invoice Pipeline parses UBL 2.1 electronic invoices, enriches every line
item with unit-of-measure and weight data from a product reference catalog
and a remote bulk-quantity service, and exports the reconciled rows as
delimited text for downstream loading.

Key Features:
  - UBL 2.1 (Colombia profile) XML parsing, loose files or ZIP bundles
  - Reference catalog import from XLSX with header auto-detection
  - Remote bulk-quantity lookup with fail-open semantics
  - Deterministic resolution precedence: remote > catalog > text pattern
  - SHA-256 dedup ledger so reruns never export the same document twice
  - CSV export plus a consolidated Excel report per run

Example Usage:
  invoice-pipeline process                      # Process the input directory
  invoice-pipeline process --single --file f.xml
  invoice-pipeline catalog import referencias.xlsx
  invoice-pipeline catalog stats`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initLogger builds the shared zap logger for the given configured level.
// The --verbose flag wins over the configuration.
func initLogger(level string) error {
	if verbose {
		level = "debug"
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger = built
	return nil
}
