package service

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

// workbookDelimiter is recorded in the configuration of workbook sources.
const workbookDelimiter = ';'

// Input is one selected file: its name and raw bytes
type Input struct {
	Name string
	Data []byte
}

// Document is a decoded Input
type Document struct {
	Name     string
	Encoding string
	Hash     string
	text     string
	table    parser.RawTable
	workbook bool
}

// IsWorkbook reports whether the document came from an .xlsx file.
func (d *Document) IsWorkbook() bool {
	return d.workbook
}

// Text is the decoded content; empty for workbooks.
func (d *Document) Text() string {
	return d.text
}

// Table splits the document into rows. Workbook rows keep their cell boundaries
// whatever delim is.
func (d *Document) Table(delim rune) parser.RawTable {
	if d.IsWorkbook() {
		return d.table
	}
	return parser.ReadTable(d.text, delim)
}

// DecodeInput turns raw bytes into a Document. An empty encoding is detected
// from the bytes.
func DecodeInput(in Input, encoding string) (*Document, error) {
	doc := &Document{Name: in.Name, Hash: dedup.FileHash(in.Data)}

	if strings.EqualFold(filepath.Ext(in.Name), ".xlsx") {
		table, err := parser.ReadWorkbook(bytes.NewReader(in.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to read workbook %s: %w", in.Name, err)
		}
		doc.table = table
		doc.workbook = true
		doc.Encoding = normalizer.EncodingUTF8
		return doc, nil
	}

	if encoding == "" {
		encoding = normalizer.DetectEncoding(in.Data)
	}
	text, err := normalizer.Decode(in.Data, encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", in.Name, err)
	}
	doc.text = text
	doc.Encoding = encoding
	return doc, nil
}
