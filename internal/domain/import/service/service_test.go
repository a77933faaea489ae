package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

const statement = "Date;Libellé;Montant\n" +
	"02/01/2024;CAFE DU COIN;-3,50\n" +
	"03/01/2024;SALAIRE;1500,00\n" +
	"04/01/2024;EDF;-45,10\n"

// ============================================================================
// Mocks
// ============================================================================

type mockRepo struct {
	*dedup.MemoryStore
	sources   map[string]*repository.Source
	saved     []repository.NewTransaction
	savedFile *repository.ImportedFile
	recorded  []*repository.ImportedFile
	saveErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{MemoryStore: dedup.NewMemoryStore(), sources: map[string]*repository.Source{}}
}

func (m *mockRepo) GetSourceByName(_ context.Context, name string) (*repository.Source, error) {
	if src, ok := m.sources[name]; ok {
		return src, nil
	}
	return nil, repository.ErrSourceNotFound
}

func (m *mockRepo) UpsertSource(_ context.Context, name string, cfg model.SourceConfig) (*repository.Source, error) {
	src, ok := m.sources[name]
	if !ok {
		src = &repository.Source{ID: uuid.New(), Name: name}
		m.sources[name] = src
	}
	src.Config = cfg
	return src, nil
}

func (m *mockRepo) ListSources(context.Context) ([]repository.Source, error) {
	var out []repository.Source
	for _, s := range m.sources {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockRepo) SaveImport(_ context.Context, file *repository.ImportedFile, txs []repository.NewTransaction) (int, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	file.ID = uuid.New()
	m.savedFile = file
	m.saved = append(m.saved, txs...)
	return len(txs), nil
}

func (m *mockRepo) RecordFile(_ context.Context, file *repository.ImportedFile) error {
	m.recorded = append(m.recorded, file)
	return nil
}

type mockCategorizer struct {
	category uuid.UUID
	calls    int
	err      error
}

func (m *mockCategorizer) CategorizeBatch(_ context.Context, descriptions []string) ([]CategorizationResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	results := make([]CategorizationResult, len(descriptions))
	for i, d := range descriptions {
		if strings.Contains(d, "CAFE") {
			id := m.category
			results[i].CategoryID = &id
		}
	}
	return results, nil
}

type mockArchive struct {
	uploads []string
}

func (m *mockArchive) Upload(_ context.Context, namespace, filename, _ string, r io.Reader) (*storage.FileInfo, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	m.uploads = append(m.uploads, namespace+"/"+filename)
	return &storage.FileInfo{ID: uuid.New(), Namespace: namespace, Name: filename}, nil
}

func newTestService(repo *mockRepo) *ImportService {
	return NewImportService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func tx(date, desc string, amount float64) *model.Transaction {
	return &model.Transaction{Date: date, Description: desc, Amount: amount}
}

// ============================================================================
// Analyze
// ============================================================================

func TestAnalyze_Detects(t *testing.T) {
	svc := newTestService(newMockRepo())

	analysis, err := svc.Analyze(context.Background(), Input{Name: "jan.csv", Data: []byte(statement)}, "")
	require.NoError(t, err)

	assert.True(t, analysis.Detected)
	assert.Equal(t, ';', analysis.Config.Delimiter)
	assert.Equal(t, normalizer.EncodingUTF8, analysis.Config.Encoding)
	assert.Equal(t, normalizer.DateDMYSlash, analysis.Config.DateFormat)
	assert.Equal(t, model.AmountSingle, analysis.Config.AmountMode)
	assert.Equal(t, 1, analysis.Config.Mapping.Description)
	assert.Equal(t, []string{"Date", "Libellé", "Montant"}, analysis.Headers)
	assert.Len(t, analysis.SampleRows, 3)
}

func TestAnalyze_FallsBackToDefault(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := newTestService(newMockRepo()).WithMetrics(metrics)

	analysis, err := svc.Analyze(context.Background(), Input{Name: "notes.txt", Data: []byte("hello\nworld\n")}, "")
	require.NoError(t, err)

	assert.False(t, analysis.Detected)
	assert.Error(t, analysis.DetectionError)
	assert.Equal(t, model.DefaultSourceConfig(), analysis.Config)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DetectionFailed))
}

func TestAnalyze_Latin1(t *testing.T) {
	svc := newTestService(newMockRepo())
	// "Libellé" in windows-1252
	data := []byte("Date;Libell\xe9;Montant\n02/01/2024;CAFE;-3,50\n03/01/2024;PAIN;-1,20\n")

	analysis, err := svc.Analyze(context.Background(), Input{Name: "latin.csv", Data: data}, "")
	require.NoError(t, err)
	assert.Equal(t, normalizer.EncodingWindows1252, analysis.Config.Encoding)
	assert.Equal(t, "Libellé", analysis.Headers[1])
}

func TestAnalyze_WorkbookKeepsCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Date", "Libellé", "Montant"},
		{"02/01/2024", "CB; CAFE, BAR", "-3,50"},
		{"03/01/2024", "VIR SALAIRE", "1500,00"},
		{"04/01/2024", "PRLV EDF; ELEC", "-45,10"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	in := Input{Name: "releve.xlsx", Data: buf.Bytes()}

	svc := newTestService(newMockRepo())
	analysis, err := svc.Analyze(context.Background(), in, "")
	require.NoError(t, err)
	require.True(t, analysis.Detected)
	assert.Equal(t, 3, analysis.ColumnCount)
	assert.Equal(t, 1, analysis.Config.Mapping.Description)
	assert.Equal(t, 2, *analysis.Config.Mapping.Amount)

	preview, err := svc.Preview(context.Background(), "bank", analysis.Config, []Input{in})
	require.NoError(t, err)
	require.Len(t, preview.Rows, 3)
	assert.Zero(t, preview.ErrorCount)
	assert.Equal(t, "CB; CAFE, BAR", preview.Rows[0].Value.Description)
	assert.Equal(t, -45.10, preview.Rows[2].Value.Amount)
}

// ============================================================================
// Preview
// ============================================================================

func TestPreview_MultiFile(t *testing.T) {
	svc := newTestService(newMockRepo())
	cfg := model.DefaultSourceConfig()

	inputs := []Input{
		{Name: "jan.csv", Data: []byte(statement)},
		{Name: "feb.csv", Data: []byte("Date;Libellé;Montant\n01/02/2024;LOYER;-700,00\n2024-02-03;BAD;-1,00\n")},
	}

	preview, err := svc.Preview(context.Background(), "bank", cfg, inputs)
	require.NoError(t, err)

	require.Len(t, preview.Rows, 5)
	for i, r := range preview.Rows {
		assert.Equal(t, i, r.RowIndex)
	}
	assert.Equal(t, "LOYER", preview.Rows[3].Value.Description)
	assert.Equal(t, model.RowErrInvalidDate, preview.Rows[4].Error)
	assert.Equal(t, 1, preview.ErrorCount)
	assert.Equal(t, 4, preview.ValidRows())
	assert.Equal(t, []string{"Date", "Libellé", "Montant"}, preview.Headers)
	assert.Len(t, preview.Documents, 2)
}

func TestPreview_Errors(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Preview(context.Background(), "bank", model.DefaultSourceConfig(), nil)
	assert.ErrorIs(t, err, ErrNoInput)

	cfg := model.DefaultSourceConfig()
	cfg.Delimiter = 'x'
	_, err = svc.Preview(context.Background(), "bank", cfg, []Input{{Name: "a.csv", Data: []byte(statement)}})
	assert.ErrorIs(t, err, model.ErrInvalidDelimiter)
}

// ============================================================================
// Execute
// ============================================================================

func executeRows() []model.ParsedRow {
	return []model.ParsedRow{
		{RowIndex: 0, Raw: []string{"02/01/2024", "CAFE DU COIN", "-3,50"}, Value: tx("2024-01-02", "CAFE DU COIN", -3.5)},
		{RowIndex: 1, Raw: []string{"03/01/2024", "SALAIRE", "1500,00"}, Value: tx("2024-01-03", "SALAIRE", 1500)},
		{RowIndex: 2, Raw: []string{"04/01/2024", "EDF", "-45,10"}, Value: tx("2024-01-04", "EDF", -45.1)},
		{RowIndex: 3, Raw: []string{"xx", "BAD", "1"}, Error: model.RowErrInvalidDate},
	}
}

func TestExecute_KeepsSelectedDuplicates(t *testing.T) {
	repo := newMockRepo()
	categorizer := &mockCategorizer{category: uuid.New()}
	archive := &mockArchive{}
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := newTestService(repo).WithCategorizationService(categorizer).WithArchive(archive).WithMetrics(metrics)

	rows := executeRows()
	stored := uuid.New()
	req := ExecuteRequest{
		SourceName: "bank",
		Config:     model.DefaultSourceConfig(),
		Files:      []Input{{Name: "jan.csv", Data: []byte(statement)}},
		Rows:       rows,
		Duplicates: &dedup.Result{
			Duplicates: []model.DuplicateMatch{
				{RowIndex: 0, ExistingID: stored, Transaction: *rows[0].Value},
				{RowIndex: 2, ExistingID: uuid.New(), Transaction: *rows[2].Value},
			},
			NewRows: []model.ParsedRow{rows[1]},
		},
		KeepDuplicates: []int{0},
	}

	report, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, repository.StatusPartial, report.Status)
	assert.Equal(t, 4, report.TotalRows)
	assert.Equal(t, 2, report.ImportedCount)
	assert.Equal(t, 1, report.SkippedDuplicates)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, []RowError{{RowIndex: 3, Message: model.RowErrInvalidDate}}, report.Errors)
	assert.Equal(t, 1, report.CategorizedCount)
	assert.Equal(t, 1, report.UncategorizedCount)
	assert.True(t, decimal.NewFromInt(1500).Equal(report.Income))
	assert.True(t, decimal.RequireFromString("-3.5").Equal(report.Expenses))
	assert.Equal(t, repo.savedFile.ID, report.FileID)
	assert.Equal(t, 1, categorizer.calls)

	require.Len(t, repo.saved, 2)
	assert.Equal(t, "CAFE DU COIN", repo.saved[0].Description)
	assert.Equal(t, "02/01/2024;CAFE DU COIN;-3,50", repo.saved[0].OriginalDescription)
	require.NotNil(t, repo.saved[0].CategoryID)
	assert.Equal(t, categorizer.category, *repo.saved[0].CategoryID)
	assert.Nil(t, repo.saved[1].CategoryID)

	assert.Equal(t, dedup.FileHash([]byte(statement)), repo.savedFile.FileHash)
	assert.Equal(t, 2, repo.savedFile.RowCount)
	assert.Equal(t, []string{"bank/jan.csv"}, archive.uploads)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsImported.WithLabelValues("bank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Imports.WithLabelValues(repository.StatusPartial)))
}

func TestExecute_SaveFailureRecordsErrorFile(t *testing.T) {
	repo := newMockRepo()
	repo.saveErr = errors.New("connection reset")
	svc := newTestService(repo)

	rows := executeRows()[:3]
	_, err := svc.Execute(context.Background(), ExecuteRequest{
		SourceName: "bank",
		Config:     model.DefaultSourceConfig(),
		Files:      []Input{{Name: "jan.csv", Data: []byte(statement)}},
		Rows:       rows,
		Duplicates: &dedup.Result{NewRows: rows},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.saveErr)

	require.Len(t, repo.recorded, 1)
	assert.Equal(t, repository.StatusError, repo.recorded[0].Status)
	require.NotNil(t, repo.recorded[0].Notes)
	assert.Contains(t, *repo.recorded[0].Notes, "connection reset")
	assert.Empty(t, repo.saved)
}

func TestExecute_CategorizerFailureIsFatal(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo).WithCategorizationService(&mockCategorizer{err: errors.New("keywords unavailable")})

	rows := executeRows()[:3]
	_, err := svc.Execute(context.Background(), ExecuteRequest{
		SourceName: "bank",
		Config:     model.DefaultSourceConfig(),
		Files:      []Input{{Name: "jan.csv", Data: []byte(statement)}},
		Rows:       rows,
		Duplicates: &dedup.Result{NewRows: rows},
	})
	require.Error(t, err)
	assert.Nil(t, repo.savedFile)
	assert.Empty(t, repo.recorded)
}

func TestExecute_RequiresInputs(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Execute(context.Background(), ExecuteRequest{SourceName: "bank", Duplicates: &dedup.Result{}})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestFileStatus(t *testing.T) {
	tests := []struct {
		imported, errors int
		want             string
	}{
		{10, 0, repository.StatusCompleted},
		{0, 0, repository.StatusCompleted},
		{9, 1, repository.StatusPartial},
		{0, 3, repository.StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fileStatus(tt.imported, tt.errors))
	}
}

// ============================================================================
// ImportFiles
// ============================================================================

func TestImportFiles_FirstAndRepeatedImport(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	inputs := []Input{{Name: "jan.csv", Data: []byte(statement)}}

	report, err := svc.ImportFiles(ctx, "bank", inputs, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.ImportedCount)
	assert.Equal(t, repository.StatusCompleted, report.Status)
	require.Contains(t, repo.sources, "bank")
	assert.Equal(t, ';', repo.sources["bank"].Config.Delimiter)

	// make the stored state visible to the duplicate checks
	for _, saved := range repo.saved {
		repo.Add(saved.Transaction)
	}
	repo.AddFile(repo.savedFile.FileHash)

	_, err = svc.ImportFiles(ctx, "bank", inputs, ImportOptions{})
	assert.ErrorIs(t, err, ErrFileAlreadyImported)

	report, err = svc.ImportFiles(ctx, "bank", inputs, ImportOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ImportedCount)
	assert.Equal(t, 3, report.SkippedDuplicates)

	report, err = svc.ImportFiles(ctx, "bank", inputs, ImportOptions{Force: true, KeepDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.ImportedCount)
	assert.Equal(t, 0, report.SkippedDuplicates)
}

func TestImportFiles_UsesStoredConfig(t *testing.T) {
	repo := newMockRepo()
	cfg := model.DefaultSourceConfig()
	cfg.DateFormat = normalizer.DateYMDDash
	repo.sources["bank"] = &repository.Source{ID: uuid.New(), Name: "bank", Config: cfg}
	svc := newTestService(repo)

	report, err := svc.ImportFiles(context.Background(), "bank", []Input{{Name: "jan.csv", Data: []byte(statement)}}, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusError, report.Status)
	assert.Equal(t, 3, report.ErrorCount)
	assert.Equal(t, 0, report.ImportedCount)

	report, err = svc.ImportFiles(context.Background(), "bank", []Input{{Name: "jan.csv", Data: []byte(statement)}}, ImportOptions{Redetect: true, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.ImportedCount)
}

func TestImportFiles_NoRows(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.ImportFiles(context.Background(), "bank", []Input{{Name: "empty.csv", Data: []byte("Date;Libellé;Montant\n")}}, ImportOptions{})
	assert.ErrorIs(t, err, ErrNoRows)
}
