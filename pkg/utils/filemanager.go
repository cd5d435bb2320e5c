// =============================================================================
// Invoice Pipeline - File Manager Utility
// =============================================================================
//
// This module provides the file plumbing around the pipeline:
//   - Input discovery (.xml documents and .zip bundles of them)
//   - ZIP extraction of XML payloads
//   - Archival of processed inputs
//   - Directory bootstrap
//   - Output file naming
//   - Run summary log generation
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to the archive directory after successful
//     processing; a failed file stays where it was so the next run retries.
//   - Archive moves fall back to copy+delete across filesystems.
//
// =============================================================================

package utils

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a processing run.
type FileManager struct {
	// InputDir is the directory scanned for invoice files.
	InputDir string

	// OutputDir is the directory where exports are written.
	OutputDir string

	// ArchiveDir is the directory for processed input files.
	ArchiveDir string

	// ArchiveOnSuccess determines whether inputs are moved after successful
	// processing. Disabled for dry runs.
	ArchiveOnSuccess bool
}

// NewFileManager creates a FileManager over the given directories.
func NewFileManager(inputDir, outputDir, archiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		ArchiveDir:       archiveDir,
		ArchiveOnSuccess: true,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// INPUT DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for invoice inputs: loose
// .xml documents and .zip bundles. The result is sorted by name so runs are
// deterministic.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".xml", ".zip":
			files = append(files, filepath.Join(fm.InputDir, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// ZIP EXTRACTION
// =============================================================================

// ZipEntry is one XML payload extracted from a bundle.
type ZipEntry struct {
	// Name is the file name inside the archive (base name only).
	Name string

	// Content is the raw XML bytes.
	Content []byte
}

// ExtractZipXML reads a .zip bundle and returns the XML payloads it
// contains, in archive order. Non-XML members are ignored; an archive with
// no XML members yields an empty slice, not an error.
func ExtractZipXML(zipPath string) ([]ZipEntry, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip %s: %w", zipPath, err)
	}
	defer r.Close()

	var entries []ZipEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(f.Name), ".xml") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open zip member %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip member %s: %w", f.Name, err)
		}

		entries = append(entries, ZipEntry{
			Name:    filepath.Base(f.Name),
			Content: content,
		})
	}

	return entries, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a processed input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file (the original path when archival is
//     disabled).
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := filepath.Join(fm.ArchiveDir, filepath.Base(filePath))
	if err := os.MkdirAll(fm.ArchiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {invoice}   - Invoice number (from params)
//   - params: A map of additional placeholder values.
//
// EXAMPLE:
//
//	format: "facturas_{timestamp}_{uuid}.csv"
//	output: "facturas_20250314_143022_a1b2c3d4-....csv"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".csv") {
		result += ".csv"
	}

	return result
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains the totals of one processing run.
type ProcessingSummary struct {
	StartTime time.Time
	EndTime   time.Time

	TotalFiles      int
	TotalInvoices   int
	TotalLines      int
	RemoteMatches   int
	CatalogOnly     int
	XMLFallback     int
	SkippedDupes    int
	FailedFiles     int
	FailedFilesList []FailedFileInfo
}

// FailedFileInfo records one input that could not be processed.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes the run summary to a timestamped text file in
// outputDir and returns its path.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("processing_summary_%s.txt", time.Now().Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Invoice Pipeline - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:   %s\n"+
		"  End Time:     %s\n"+
		"  Duration:     %s\n\n"+
		"Statistics:\n"+
		"  Input Files:        %d\n"+
		"  Invoices:           %d\n"+
		"  Line Items:         %d\n"+
		"  Remote Matches:     %d\n"+
		"  Catalog Only:       %d\n"+
		"  XML Fallback:       %d\n"+
		"  Skipped Duplicates: %d\n"+
		"  Failed Files:       %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.TotalInvoices,
		summary.TotalLines,
		summary.RemoteMatches,
		summary.CatalogOnly,
		summary.XMLFallback,
		summary.SkippedDupes,
		summary.FailedFiles)

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n  Error: %s\n\n", ff.InputFile, ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
