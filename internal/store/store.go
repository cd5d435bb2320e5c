// =============================================================================
// Invoice Pipeline - Processed Document Ledger
// =============================================================================
//
// This module keeps the SQLite ledger of already-processed XML documents so a
// rerun never exports the same invoice twice. Deduplication is by SHA-256
// hash of the raw XML bytes, so renaming a file or re-downloading the same
// attachment does not defeat it.
//
// SCHEMA:
//   processed_xml(
//     id             INTEGER PRIMARY KEY AUTOINCREMENT,
//     xml_hash       TEXT UNIQUE NOT NULL,   -- SHA-256 of the XML bytes
//     filename       TEXT NOT NULL,
//     zip_filename   TEXT,                   -- source archive, when any
//     processed_at   TIMESTAMP NOT NULL,
//     invoice_number TEXT,
//     output_file    TEXT                    -- CSV the invoice went into
//   )
//
// MarkProcessed is INSERT OR IGNORE, so marking the same content twice is a
// no-op rather than an error.
//
// =============================================================================

package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_xml (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    xml_hash       TEXT UNIQUE NOT NULL,
    filename       TEXT NOT NULL,
    zip_filename   TEXT,
    processed_at   TIMESTAMP NOT NULL,
    invoice_number TEXT,
    output_file    TEXT
);
CREATE INDEX IF NOT EXISTS idx_processed_xml_hash ON processed_xml(xml_hash);
CREATE INDEX IF NOT EXISTS idx_processed_xml_invoice ON processed_xml(invoice_number);
`

// Record is one ledger row.
type Record struct {
	Hash          string
	Filename      string
	ZipFilename   string
	ProcessedAt   time.Time
	InvoiceNumber string
	OutputFile    string
}

// Store is the SQLite-backed ledger. Safe for use from a single process;
// SQLite serializes writers internally.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the ledger database at path. Use the
// special path ":memory:" for an ephemeral ledger in tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Hash returns the hex SHA-256 of the XML bytes, the ledger's dedup key.
func Hash(xmlContent []byte) string {
	sum := sha256.Sum256(xmlContent)
	return hex.EncodeToString(sum[:])
}

// IsProcessed reports whether identical XML content was processed before.
func (s *Store) IsProcessed(ctx context.Context, xmlContent []byte) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_xml WHERE xml_hash = ?`, Hash(xmlContent),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: query hash: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed records the XML content as processed. Marking already-known
// content again is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, xmlContent []byte, rec Record) error {
	hash := Hash(xmlContent)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_xml
		   (xml_hash, filename, zip_filename, processed_at, invoice_number, output_file)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		hash, rec.Filename, rec.ZipFilename, time.Now().UTC(),
		rec.InvoiceNumber, rec.OutputFile)
	if err != nil {
		return fmt.Errorf("store: mark processed: %w", err)
	}

	s.logger.Debug("marked xml as processed",
		zap.String("hash", hash[:12]),
		zap.String("filename", rec.Filename),
		zap.String("invoice", rec.InvoiceNumber))
	return nil
}

// Recent returns the most recent ledger rows, newest first, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT xml_hash, filename, COALESCE(zip_filename, ''), processed_at,
		        COALESCE(invoice_number, ''), COALESCE(output_file, '')
		   FROM processed_xml
		  ORDER BY processed_at DESC, id DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Hash, &rec.Filename, &rec.ZipFilename,
			&rec.ProcessedAt, &rec.InvoiceNumber, &rec.OutputFile); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
