package utils

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range members {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xml", "a.zip", "skip.txt", "c.XML"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.xml"), 0o755))

	fm := NewFileManager(dir, t.TempDir(), t.TempDir())
	files, err := fm.DiscoverInputFiles()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.zip", "b.xml", "c.XML"}, names,
		"sorted, case-insensitive extensions, directories skipped")
}

func TestExtractZipXML(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "facturas.zip")
	writeZip(t, zipPath, map[string]string{
		"carpeta/factura1.xml": "<Invoice>1</Invoice>",
		"factura2.XML":         "<Invoice>2</Invoice>",
		"firma.pdf":            "not xml",
	})

	entries, err := ExtractZipXML(zipPath)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]string{}
	for _, e := range entries {
		byName[e.Name] = string(e.Content)
	}
	assert.Equal(t, "<Invoice>1</Invoice>", byName["factura1.xml"])
	assert.Equal(t, "<Invoice>2</Invoice>", byName["factura2.XML"])
}

func TestExtractZipXMLWithoutXMLMembers(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "vacio.zip")
	writeZip(t, zipPath, map[string]string{"leeme.txt": "hola"})

	entries, err := ExtractZipXML(zipPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveInputFile(t *testing.T) {
	inputDir := t.TempDir()
	archiveDir := t.TempDir()
	src := filepath.Join(inputDir, "factura.xml")
	require.NoError(t, os.WriteFile(src, []byte("<Invoice/>"), 0o644))

	fm := NewFileManager(inputDir, t.TempDir(), archiveDir)
	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(archiveDir, "factura.xml"), archived)
	assert.False(t, FileExists(src), "original must be moved away")
	assert.True(t, FileExists(archived))
}

func TestArchiveDisabledLeavesFileInPlace(t *testing.T) {
	inputDir := t.TempDir()
	src := filepath.Join(inputDir, "factura.xml")
	require.NoError(t, os.WriteFile(src, []byte("<Invoice/>"), 0o644))

	fm := NewFileManager(inputDir, t.TempDir(), t.TempDir())
	fm.ArchiveOnSuccess = false

	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, src, archived)
	assert.True(t, FileExists(src))
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("facturas_{date}_{invoice}", map[string]string{
		"invoice": "2B-285138",
	})
	assert.Contains(t, name, "2B-285138")
	assert.True(t, strings.HasSuffix(name, ".csv"))

	a := GenerateOutputFileName("out_{uuid}.csv", nil)
	b := GenerateOutputFileName("out_{uuid}.csv", nil)
	assert.NotEqual(t, a, b, "uuid placeholder must produce unique names")
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSummaryLog(ProcessingSummary{
		TotalFiles:    3,
		TotalInvoices: 2,
		TotalLines:    11,
		RemoteMatches: 6,
		CatalogOnly:   4,
		XMLFallback:   1,
		SkippedDupes:  1,
		FailedFiles:   1,
		FailedFilesList: []FailedFileInfo{
			{InputFile: "malo.xml", ErrorMessage: "not well-formed"},
		},
	}, dir)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Invoices:           2")
	assert.Contains(t, text, "Remote Matches:     6")
	assert.Contains(t, text, "malo.xml")
}
