// =============================================================================
// Invoice Pipeline - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Invoice Pipeline CLI application. It
// initializes the Cobra CLI framework and delegates command execution to the
// cmd package.
//
// USAGE:
//   invoice-pipeline process       - Process invoice files in the input directory
//   invoice-pipeline catalog       - Inspect the product reference catalog
//   invoice-pipeline version       - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : Contains all CLI command definitions (Cobra)
//   - internal/      : Contains core business logic (not for external import)
//   - pkg/           : Contains shared utilities
//
// =============================================================================

package main

import (
	"github.com/automatizaco/invoice-pipeline/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
