// Package service provides the import orchestration logic: analyze a new
// source, preview parsed rows, check for duplicates, then execute the import.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/sniffer"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

var (
	ErrNoInput             = errors.New("no file selected")
	ErrNoRows              = errors.New("no data rows found")
	ErrFileAlreadyImported = errors.New("file already imported")
)

// CategorizationResult holds the category and supplier assigned to one description
type CategorizationResult struct {
	CategoryID *uuid.UUID
	SupplierID *uuid.UUID
}

// CategorizationService categorizes many descriptions in one call, in input order
type CategorizationService interface {
	CategorizeBatch(ctx context.Context, descriptions []string) ([]CategorizationResult, error)
}

// Archive keeps a copy of every imported file
type Archive interface {
	Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*storage.FileInfo, error)
}

// Analysis is the configuration suggested for a source
type Analysis struct {
	Config         model.SourceConfig
	Detected       bool
	DetectionError error
	Headers        []string
	SampleRows     parser.RawTable
	ColumnCount    int
}

// Preview is every parsed row of the selected files
type Preview struct {
	Rows       []model.ParsedRow
	Headers    []string
	Documents  []*Document
	ErrorCount int
}

// ValidRows returns the rows that parsed.
func (p *Preview) ValidRows() int {
	return len(p.Rows) - p.ErrorCount
}

// ExecuteRequest carries everything resolved before writing
type ExecuteRequest struct {
	SourceName string
	Config     model.SourceConfig
	Files      []Input
	Rows       []model.ParsedRow
	Duplicates *dedup.Result
	// RowIndex values of duplicates to import anyway
	KeepDuplicates []int
}

// RowError is a parse or write error reported against a row
type RowError struct {
	RowIndex int
	Message  string
}

// ImportReport summarizes one execution
type ImportReport struct {
	SourceName         string
	FileID             uuid.UUID
	Status             string
	TotalRows          int
	ImportedCount      int
	SkippedDuplicates  int
	ErrorCount         int
	CategorizedCount   int
	UncategorizedCount int
	Errors             []RowError
	Income             decimal.Decimal
	Expenses           decimal.Decimal
}

// ImportOptions tunes ImportFiles
type ImportOptions struct {
	// Force imports a file whose hash was already imported
	Force bool
	// KeepDuplicates imports rows matching stored transactions too
	KeepDuplicates bool
	// Redetect ignores a stored source configuration
	Redetect bool
}

// ImportService orchestrates file analysis and import operations
type ImportService struct {
	repo       repository.ImportRepository
	detector   *dedup.Detector
	catService CategorizationService // Optional: nil leaves transactions uncategorized
	archive    Archive               // Optional
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:     repo,
		detector: dedup.NewDetector(repo, repo, logger),
		metrics:  NewMetrics(nil),
		tracer:   otel.Tracer("github.com/FACorreiaa/statement-ingest/internal/domain/import/service"),
		logger:   logger,
	}
}

// WithCategorizationService adds categorization support to the import service
func (s *ImportService) WithCategorizationService(catService CategorizationService) *ImportService {
	s.catService = catService
	return s
}

// WithArchive keeps a copy of imported files
func (s *ImportService) WithArchive(archive Archive) *ImportService {
	s.archive = archive
	return s
}

// WithMetrics replaces the unregistered default metrics
func (s *ImportService) WithMetrics(m *Metrics) *ImportService {
	s.metrics = m
	return s
}

// ============================================================================
// Analyze
// ============================================================================

// Analyze suggests a configuration from the first selected file. A failed
// detection is not an error: the default configuration is returned with
// Detected false and the reason in DetectionError.
func (s *ImportService) Analyze(ctx context.Context, in Input, encoding string) (*Analysis, error) {
	_, span := s.tracer.Start(ctx, "import.analyze", trace.WithAttributes(attribute.String("file", in.Name)))
	defer span.End()

	doc, err := DecodeInput(in, encoding)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}

	var det *sniffer.Detection
	if doc.IsWorkbook() {
		det, err = sniffer.DetectTable(doc.Table(workbookDelimiter), workbookDelimiter)
	} else {
		det, err = sniffer.AutoDetect(doc.Text())
	}
	if err != nil {
		s.metrics.DetectionFailed.Inc()
		s.logger.Warn("auto-detection failed, using default configuration",
			slog.String("file", in.Name),
			slog.Any("error", err))

		cfg := model.DefaultSourceConfig()
		cfg.Encoding = doc.Encoding
		if doc.IsWorkbook() {
			cfg.Delimiter = workbookDelimiter
		}
		span.SetAttributes(attribute.Bool("detected", false))
		return &Analysis{Config: cfg, DetectionError: err}, nil
	}

	det.Config.Encoding = doc.Encoding
	span.SetAttributes(
		attribute.Bool("detected", true),
		attribute.String("delimiter", string(det.Config.Delimiter)),
		attribute.String("amount_mode", string(det.Config.AmountMode)),
	)

	s.logger.Info("source configuration detected",
		slog.String("file", in.Name),
		slog.String("delimiter", string(det.Config.Delimiter)),
		slog.String("encoding", det.Config.Encoding),
		slog.String("date_format", string(det.Config.DateFormat)),
		slog.Int("skip_lines", det.Config.SkipLines),
		slog.Bool("has_header", det.Config.HasHeader),
		slog.String("amount_mode", string(det.Config.AmountMode)))

	return &Analysis{
		Config:      det.Config,
		Detected:    true,
		Headers:     det.Headers,
		SampleRows:  det.SampleRows,
		ColumnCount: det.ColumnCount,
	}, nil
}

// ResolveConfig returns the stored configuration of a known source, or
// analyzes first when the source is new or redetect is set.
func (s *ImportService) ResolveConfig(ctx context.Context, sourceName string, first Input, redetect bool) (model.SourceConfig, *Analysis, error) {
	if !redetect {
		src, err := s.repo.GetSourceByName(ctx, sourceName)
		if err == nil {
			return src.Config, nil, nil
		}
		if !errors.Is(err, repository.ErrSourceNotFound) {
			return model.SourceConfig{}, nil, err
		}
	}

	analysis, err := s.Analyze(ctx, first, "")
	if err != nil {
		return model.SourceConfig{}, nil, err
	}
	return analysis.Config, analysis, nil
}

// ============================================================================
// Preview
// ============================================================================

// Preview parses every input with cfg. Each file's preamble and header are
// dropped independently; RowIndex runs across all files.
func (s *ImportService) Preview(ctx context.Context, sourceName string, cfg model.SourceConfig, inputs []Input) (*Preview, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", sourceName, err)
	}

	preview := &Preview{}
	tables := make([]parser.RawTable, 0, len(inputs))
	for _, in := range inputs {
		doc, err := DecodeInput(in, cfg.Encoding)
		if err != nil {
			return nil, err
		}
		table := doc.Table(cfg.Delimiter)
		if preview.Headers == nil {
			preview.Headers = parser.Headers(table, cfg)
		}
		preview.Documents = append(preview.Documents, doc)
		tables = append(tables, table)
	}

	for row := range parser.Rows(tables, cfg) {
		if !row.OK() {
			preview.ErrorCount++
			s.metrics.ParseErrors.WithLabelValues(sourceName, row.Error).Inc()
		}
		preview.Rows = append(preview.Rows, row)
	}
	s.metrics.RowsParsed.WithLabelValues(sourceName).Add(float64(len(preview.Rows)))

	s.logger.Debug("files parsed",
		slog.String("source", sourceName),
		slog.Int("files", len(inputs)),
		slog.Int("rows", len(preview.Rows)),
		slog.Int("errors", preview.ErrorCount))
	return preview, nil
}

// ============================================================================
// Duplicate check
// ============================================================================

// CheckDuplicates flags stored and in-batch duplicates among rows, and whether
// the first input was imported before.
func (s *ImportService) CheckDuplicates(ctx context.Context, sourceName string, inputs []Input, rows []model.ParsedRow) (*dedup.Result, error) {
	ctx, span := s.tracer.Start(ctx, "import.check_duplicates", trace.WithAttributes(
		attribute.String("source", sourceName),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	var first []byte
	if len(inputs) > 0 {
		first = inputs[0].Data
	}

	res, err := s.detector.Check(ctx, first, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "duplicate check failed")
		return nil, err
	}

	for _, d := range res.Duplicates {
		kind := "stored"
		if d.InBatch {
			kind = "batch"
		}
		s.metrics.Duplicates.WithLabelValues(sourceName, kind).Inc()
	}
	span.SetAttributes(attribute.Int("duplicates", len(res.Duplicates)))
	return res, nil
}

// ============================================================================
// Execute
// ============================================================================

// Execute stores the source configuration, categorizes the rows to import in
// one batch and writes them with the imported-file record in one transaction.
// Rows to import are the new rows plus the duplicates listed in KeepDuplicates.
func (s *ImportService) Execute(ctx context.Context, req ExecuteRequest) (*ImportReport, error) {
	ctx, span := s.tracer.Start(ctx, "import.execute", trace.WithAttributes(attribute.String("source", req.SourceName)))
	defer span.End()
	start := time.Now()

	report, err := s.execute(ctx, req)
	s.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Imports.WithLabelValues(repository.StatusError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "import failed")
		return nil, err
	}

	s.metrics.Imports.WithLabelValues(report.Status).Inc()
	span.SetAttributes(
		attribute.String("status", report.Status),
		attribute.Int("imported", report.ImportedCount),
	)
	return report, nil
}

func (s *ImportService) execute(ctx context.Context, req ExecuteRequest) (*ImportReport, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoInput
	}
	if req.Duplicates == nil {
		return nil, fmt.Errorf("duplicate check result is required")
	}

	source, err := s.repo.UpsertSource(ctx, req.SourceName, req.Config)
	if err != nil {
		return nil, err
	}

	toImport := rowsToImport(req)

	report := &ImportReport{
		SourceName:        req.SourceName,
		TotalRows:         len(req.Rows),
		SkippedDuplicates: len(req.Duplicates.Duplicates) - (len(toImport) - len(req.Duplicates.NewRows)),
	}
	for _, r := range req.Rows {
		if !r.OK() {
			report.Errors = append(report.Errors, RowError{RowIndex: r.RowIndex, Message: r.Error})
		}
	}

	categories, err := s.categorize(ctx, toImport)
	if err != nil {
		return nil, err
	}

	delimiter := string(req.Config.Delimiter)
	txs := make([]repository.NewTransaction, len(toImport))
	for i, r := range toImport {
		txs[i] = repository.NewTransaction{
			Transaction:         *r.Value,
			CategoryID:          categories[i].CategoryID,
			SupplierID:          categories[i].SupplierID,
			OriginalDescription: strings.Join(r.Raw, delimiter),
		}
		if categories[i].CategoryID != nil {
			report.CategorizedCount++
		} else {
			report.UncategorizedCount++
		}

		amount := decimal.NewFromFloat(r.Value.Amount)
		if amount.IsPositive() {
			report.Income = report.Income.Add(amount)
		} else {
			report.Expenses = report.Expenses.Add(amount)
		}
	}

	names := make([]string, len(req.Files))
	for i, f := range req.Files {
		names[i] = f.Name
	}
	file := &repository.ImportedFile{
		SourceID: source.ID,
		Filename: strings.Join(names, ", "),
		FileHash: dedup.FileHash(req.Files[0].Data),
		RowCount: len(txs),
		Status:   fileStatus(len(txs), len(report.Errors)),
	}

	imported, err := s.repo.SaveImport(ctx, file, txs)
	if err != nil {
		notes := err.Error()
		failed := &repository.ImportedFile{
			SourceID: source.ID,
			Filename: file.Filename,
			FileHash: file.FileHash,
			Status:   repository.StatusError,
			Notes:    &notes,
		}
		if recErr := s.repo.RecordFile(ctx, failed); recErr != nil {
			s.logger.Warn("failed to record failed import", slog.Any("error", recErr))
		}
		return nil, fmt.Errorf("failed to import %s: %w", req.SourceName, err)
	}

	report.FileID = file.ID
	report.Status = file.Status
	report.ImportedCount = imported
	report.ErrorCount = len(report.Errors)

	s.metrics.RowsImported.WithLabelValues(req.SourceName).Add(float64(imported))
	s.metrics.Categorized.WithLabelValues(req.SourceName, "categorized").Add(float64(report.CategorizedCount))
	s.metrics.Categorized.WithLabelValues(req.SourceName, "uncategorized").Add(float64(report.UncategorizedCount))

	s.archiveFiles(ctx, req.SourceName, req.Files)

	s.logger.Info("import complete",
		slog.String("source", req.SourceName),
		slog.String("status", report.Status),
		slog.Int("total", report.TotalRows),
		slog.Int("imported", report.ImportedCount),
		slog.Int("skipped_duplicates", report.SkippedDuplicates),
		slog.Int("errors", report.ErrorCount),
		slog.Int("categorized", report.CategorizedCount))
	return report, nil
}

// ImportFiles runs the whole pipeline for the files of one source. A file whose
// hash was already imported returns ErrFileAlreadyImported unless opts.Force.
func (s *ImportService) ImportFiles(ctx context.Context, sourceName string, inputs []Input, opts ImportOptions) (*ImportReport, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}

	cfg, _, err := s.ResolveConfig(ctx, sourceName, inputs[0], opts.Redetect)
	if err != nil {
		return nil, err
	}

	preview, err := s.Preview(ctx, sourceName, cfg, inputs)
	if err != nil {
		return nil, err
	}
	if len(preview.Rows) == 0 {
		return nil, ErrNoRows
	}

	dups, err := s.CheckDuplicates(ctx, sourceName, inputs, preview.Rows)
	if err != nil {
		return nil, err
	}
	if dups.FileAlreadyImported && !opts.Force {
		return nil, fmt.Errorf("%s: %w", inputs[0].Name, ErrFileAlreadyImported)
	}

	req := ExecuteRequest{
		SourceName: sourceName,
		Config:     cfg,
		Files:      inputs,
		Rows:       preview.Rows,
		Duplicates: dups,
	}
	if opts.KeepDuplicates {
		for _, d := range dups.Duplicates {
			if !d.InBatch {
				req.KeepDuplicates = append(req.KeepDuplicates, d.RowIndex)
			}
		}
	}
	return s.Execute(ctx, req)
}

// rowsToImport returns new rows plus kept duplicates, in RowIndex order.
func rowsToImport(req ExecuteRequest) []model.ParsedRow {
	rows := slices.Clone(req.Duplicates.NewRows)
	if len(req.KeepDuplicates) == 0 {
		return rows
	}

	keep := make(map[int]bool, len(req.KeepDuplicates))
	for _, d := range req.Duplicates.Duplicates {
		if slices.Contains(req.KeepDuplicates, d.RowIndex) {
			keep[d.RowIndex] = true
		}
	}
	for _, r := range req.Rows {
		if r.OK() && keep[r.RowIndex] {
			rows = append(rows, r)
		}
	}

	slices.SortFunc(rows, func(a, b model.ParsedRow) int { return a.RowIndex - b.RowIndex })
	return rows
}

func fileStatus(imported, errorCount int) string {
	switch {
	case errorCount > 0 && imported == 0:
		return repository.StatusError
	case errorCount > 0:
		return repository.StatusPartial
	default:
		return repository.StatusCompleted
	}
}

func (s *ImportService) categorize(ctx context.Context, rows []model.ParsedRow) ([]CategorizationResult, error) {
	results := make([]CategorizationResult, len(rows))
	if s.catService == nil || len(rows) == 0 {
		return results, nil
	}

	descriptions := make([]string, len(rows))
	for i, r := range rows {
		descriptions[i] = r.Value.Description
	}

	categorized, err := s.catService.CategorizeBatch(ctx, descriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to categorize transactions: %w", err)
	}
	if len(categorized) != len(rows) {
		return nil, fmt.Errorf("categorizer returned %d results for %d descriptions", len(categorized), len(rows))
	}
	return categorized, nil
}

func (s *ImportService) archiveFiles(ctx context.Context, sourceName string, files []Input) {
	if s.archive == nil {
		return
	}
	for _, f := range files {
		if _, err := s.archive.Upload(ctx, sourceName, f.Name, contentType(f.Name), bytes.NewReader(f.Data)); err != nil {
			s.logger.Warn("failed to archive imported file",
				slog.String("source", sourceName),
				slog.String("file", f.Name),
				slog.Any("error", err))
		}
	}
}

func contentType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}
