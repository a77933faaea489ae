// Package repository persists import sources, imported-file records and transactions.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
)

var ErrSourceNotFound = errors.New("import source not found")

// Imported file statuses
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusError     = "error"
)

// Source is a named institution export whose SourceConfig is remembered
type Source struct {
	ID        uuid.UUID
	Name      string
	Config    model.SourceConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImportedFile records one import run of one or more files of a source
type ImportedFile struct {
	ID         uuid.UUID
	SourceID   uuid.UUID
	Filename   string
	FileHash   string
	RowCount   int
	Status     string
	Notes      *string
	ImportedAt time.Time
}

// NewTransaction is a parsed row ready to be stored
type NewTransaction struct {
	model.Transaction
	CategoryID          *uuid.UUID
	SupplierID          *uuid.UUID
	OriginalDescription string
}

// ImportRepository defines persistence for the import pipeline
type ImportRepository interface {
	GetSourceByName(ctx context.Context, name string) (*Source, error)
	UpsertSource(ctx context.Context, name string, cfg model.SourceConfig) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)

	FindFileByHash(ctx context.Context, hash string) (*uuid.UUID, error)
	FindExisting(ctx context.Context, candidates []model.Transaction) ([]dedup.Existing, error)

	SaveImport(ctx context.Context, file *ImportedFile, txs []NewTransaction) (int, error)
	RecordFile(ctx context.Context, file *ImportedFile) error
}

// PostgresRepository implements ImportRepository on pgx
type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository creates a new import repository
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

var _ ImportRepository = (*PostgresRepository)(nil)

// ============================================================================
// Sources
// ============================================================================

const sourceColumns = `id, name, delimiter, encoding, date_format, skip_lines, has_header,
		column_mapping, amount_mode, sign_convention, created_at, updated_at`

func scanSource(row pgx.Row) (*Source, error) {
	var (
		s         Source
		delimiter string
		format    string
		mode      string
		sign      string
		mapping   []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &delimiter, &s.Config.Encoding, &format, &s.Config.SkipLines,
		&s.Config.HasHeader, &mapping, &mode, &sign, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}

	s.Config.Delimiter, _ = utf8.DecodeRuneInString(delimiter)
	s.Config.DateFormat = normalizer.DateFormat(format)
	s.Config.AmountMode = model.AmountMode(mode)
	s.Config.SignConvention = model.SignConvention(sign)
	if err := json.Unmarshal(mapping, &s.Config.Mapping); err != nil {
		return nil, fmt.Errorf("failed to decode column mapping of %q: %w", s.Name, err)
	}
	return &s, nil
}

// GetSourceByName returns ErrSourceNotFound for an unknown name
func (r *PostgresRepository) GetSourceByName(ctx context.Context, name string) (*Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM import_sources WHERE name = $1`

	s, err := scanSource(r.db.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source %q: %w", name, err)
	}
	return s, nil
}

// UpsertSource stores cfg under name, replacing any previous configuration
func (r *PostgresRepository) UpsertSource(ctx context.Context, name string, cfg model.SourceConfig) (*Source, error) {
	mapping, err := json.Marshal(cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column mapping: %w", err)
	}

	query := `
		INSERT INTO import_sources (id, name, delimiter, encoding, date_format, skip_lines, has_header,
			column_mapping, amount_mode, sign_convention)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE SET
			delimiter = EXCLUDED.delimiter,
			encoding = EXCLUDED.encoding,
			date_format = EXCLUDED.date_format,
			skip_lines = EXCLUDED.skip_lines,
			has_header = EXCLUDED.has_header,
			column_mapping = EXCLUDED.column_mapping,
			amount_mode = EXCLUDED.amount_mode,
			sign_convention = EXCLUDED.sign_convention,
			updated_at = NOW()
		RETURNING ` + sourceColumns

	s, err := scanSource(r.db.QueryRow(ctx, query,
		uuid.New(), name, string(cfg.Delimiter), cfg.Encoding, string(cfg.DateFormat), cfg.SkipLines,
		cfg.HasHeader, mapping, string(cfg.AmountMode), string(cfg.SignConvention)))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source %q: %w", name, err)
	}
	return s, nil
}

// ListSources returns every source ordered by name
func (r *PostgresRepository) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.Query(ctx, `SELECT `+sourceColumns+` FROM import_sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// ============================================================================
// Duplicate lookups
// ============================================================================

// FindFileByHash returns the most recent imported file with that content hash, or nil.
// Failed runs are ignored so their files can be imported again.
func (r *PostgresRepository) FindFileByHash(ctx context.Context, hash string) (*uuid.UUID, error) {
	query := `
		SELECT id FROM imported_files
		WHERE file_hash = $1 AND status <> 'error'
		ORDER BY imported_at DESC
		LIMIT 1
	`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, hash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up file hash: %w", err)
	}
	return &id, nil
}

// FindExisting resolves every candidate in a single statement. The returned
// Index is the candidate's position in the input slice.
func (r *PostgresRepository) FindExisting(ctx context.Context, candidates []model.Transaction) ([]dedup.Existing, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	dates := make([]string, len(candidates))
	descriptions := make([]string, len(candidates))
	amounts := make([]float64, len(candidates))
	for i, c := range candidates {
		dates[i] = c.Date
		descriptions[i] = c.Description
		amounts[i] = storedAmount(c.Amount)
	}

	query := `
		SELECT c.idx, t.id
		FROM unnest($1::text[], $2::text[], $3::float8[]) WITH ORDINALITY AS c(date, description, amount, idx)
		JOIN LATERAL (
			SELECT id FROM transactions
			WHERE date = c.date::date
			  AND description = c.description
			  AND amount = round(c.amount::numeric, 2)
			ORDER BY created_at
			LIMIT 1
		) t ON TRUE
		ORDER BY c.idx
	`

	rows, err := r.db.Query(ctx, query, dates, descriptions, amounts)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing transactions: %w", err)
	}
	defer rows.Close()

	var found []dedup.Existing
	for rows.Next() {
		var (
			idx int64
			id  uuid.UUID
		)
		if err := rows.Scan(&idx, &id); err != nil {
			return nil, fmt.Errorf("failed to scan existing transaction: %w", err)
		}
		found = append(found, dedup.Existing{Index: int(idx) - 1, ID: id})
	}
	return found, rows.Err()
}

// ============================================================================
// Writes
// ============================================================================

const insertFileQuery = `
	INSERT INTO imported_files (id, source_id, filename, file_hash, row_count, status, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING imported_at
`

var transactionColumns = []string{
	"id", "date", "description", "amount", "category_id", "supplier_id",
	"source_id", "file_id", "original_description",
}

// SaveImport writes the imported-file record and all transactions atomically.
// It returns the number of transactions written.
func (r *PostgresRepository) SaveImport(ctx context.Context, file *ImportedFile, txs []NewTransaction) (int, error) {
	rows := make([][]any, len(txs))
	for i, t := range txs {
		date, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			return 0, fmt.Errorf("transaction %d: invalid date %q: %w", i, t.Date, err)
		}
		rows[i] = []any{
			uuid.New(), date, t.Description, storedAmount(t.Amount), t.CategoryID, t.SupplierID,
			file.SourceID, file.ID, t.OriginalDescription,
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
		for _, row := range rows {
			row[7] = file.ID
		}
	}
	if err := tx.QueryRow(ctx, insertFileQuery, file.ID, file.SourceID, file.Filename, file.FileHash,
		file.RowCount, file.Status, file.Notes).Scan(&file.ImportedAt); err != nil {
		return 0, fmt.Errorf("failed to insert imported file: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return int(copied), nil
}

// RecordFile stores an imported-file record on its own, for runs that wrote no transactions
func (r *PostgresRepository) RecordFile(ctx context.Context, file *ImportedFile) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if err := r.db.QueryRow(ctx, insertFileQuery, file.ID, file.SourceID, file.Filename, file.FileHash,
		file.RowCount, file.Status, file.Notes).Scan(&file.ImportedAt); err != nil {
		return fmt.Errorf("failed to insert imported file: %w", err)
	}
	return nil
}

// storedAmount rounds to the two decimals the amount column keeps.
func storedAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
