// Package dedup flags parsed rows that were already imported, either as stored
// transactions with the same date, description and amount, or as a whole file
// whose content hash was seen before.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
)

// Existing is one stored transaction matching candidate Index.
type Existing struct {
	Index int
	ID    uuid.UUID
}

// TransactionStore resolves a whole batch of candidates in one round trip.
// Matching is exact: equal date and description strings and equal amounts.
type TransactionStore interface {
	FindExisting(ctx context.Context, candidates []model.Transaction) ([]Existing, error)
}

// FileStore looks up previously imported files by content hash. It returns
// nil and no error when the hash is unknown.
type FileStore interface {
	FindFileByHash(ctx context.Context, hash string) (*uuid.UUID, error)
}

// Result is the outcome of Check.
type Result struct {
	FileAlreadyImported bool
	ExistingFileID      *uuid.UUID
	Duplicates          []model.DuplicateMatch
	NewRows             []model.ParsedRow
}

// Detector checks parsed rows against the persisted store
type Detector struct {
	transactions TransactionStore
	files        FileStore
	logger       *slog.Logger
}

// NewDetector creates a duplicate detector
func NewDetector(transactions TransactionStore, files FileStore, logger *slog.Logger) *Detector {
	return &Detector{transactions: transactions, files: files, logger: logger}
}

// FileHash is the lowercase hex SHA-256 of a file's bytes.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FindDuplicates returns the candidates already stored. RowIndex is the
// candidate's 0-based position in the input slice.
func (d *Detector) FindDuplicates(ctx context.Context, candidates []model.Transaction) ([]model.DuplicateMatch, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := d.transactions.FindExisting(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing transactions: %w", err)
	}

	matches := make([]model.DuplicateMatch, 0, len(existing))
	seen := make(map[int]bool, len(existing))
	for _, e := range existing {
		if e.Index < 0 || e.Index >= len(candidates) || seen[e.Index] {
			continue
		}
		seen[e.Index] = true
		matches = append(matches, model.DuplicateMatch{
			RowIndex:    e.Index,
			ExistingID:  e.ID,
			Transaction: candidates[e.Index],
		})
	}
	return matches, nil
}

// CheckRows runs FindDuplicates over the rows that parsed and adds rows that
// repeat an earlier row of the same batch. Returned matches carry the
// ParsedRow.RowIndex of the colliding row, stored matches first.
func (d *Detector) CheckRows(ctx context.Context, rows []model.ParsedRow) ([]model.DuplicateMatch, []model.ParsedRow, error) {
	valid := make([]model.ParsedRow, 0, len(rows))
	candidates := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		if r.OK() {
			valid = append(valid, r)
			candidates = append(candidates, *r.Value)
		}
	}

	stored, err := d.FindDuplicates(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}

	flagged := make(map[int]bool, len(stored))
	matches := make([]model.DuplicateMatch, 0, len(stored))
	for _, m := range stored {
		flagged[m.RowIndex] = true
		m.RowIndex = valid[m.RowIndex].RowIndex
		matches = append(matches, m)
	}

	keys := make(map[string]bool, len(valid))
	for i, r := range valid {
		if flagged[i] {
			continue
		}
		key := r.Value.Key()
		if keys[key] {
			flagged[i] = true
			matches = append(matches, model.DuplicateMatch{
				RowIndex:    r.RowIndex,
				InBatch:     true,
				Transaction: *r.Value,
			})
			continue
		}
		keys[key] = true
	}

	fresh := make([]model.ParsedRow, 0, len(valid)-len(matches))
	for i, r := range valid {
		if !flagged[i] {
			fresh = append(fresh, r)
		}
	}
	return matches, fresh, nil
}

// Check combines the whole-file hash lookup for firstFile with CheckRows.
// A nil firstFile skips the file check.
func (d *Detector) Check(ctx context.Context, firstFile []byte, rows []model.ParsedRow) (*Result, error) {
	res := &Result{}

	if firstFile != nil && d.files != nil {
		id, err := d.files.FindFileByHash(ctx, FileHash(firstFile))
		if err != nil {
			return nil, fmt.Errorf("failed to look up file hash: %w", err)
		}
		res.FileAlreadyImported = id != nil
		res.ExistingFileID = id
	}

	duplicates, fresh, err := d.CheckRows(ctx, rows)
	if err != nil {
		return nil, err
	}
	res.Duplicates = duplicates
	res.NewRows = fresh

	d.logger.Info("duplicate check complete",
		slog.Int("rows", len(rows)),
		slog.Int("new", len(fresh)),
		slog.Int("duplicates", len(duplicates)),
		slog.Bool("file_already_imported", res.FileAlreadyImported))
	return res, nil
}
