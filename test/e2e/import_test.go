package e2e

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordCategorizer matches against a fixed keyword list
type keywordCategorizer struct {
	engine *categorization.Engine
}

func (k keywordCategorizer) CategorizeBatch(_ context.Context, descriptions []string) ([]service.CategorizationResult, error) {
	out := make([]service.CategorizationResult, len(descriptions))
	for i, r := range k.engine.MatchBatch(descriptions) {
		out[i] = service.CategorizationResult{CategoryID: r.CategoryID, SupplierID: r.SupplierID}
	}
	return out, nil
}

func TestDebitCreditStatement_DetectParseAndReimport(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := testutil.NewGenerator(2024).Rows(50, start, decimal.NewFromInt(1000))
	input := service.Input{Name: "releve.csv", Data: []byte(testutil.DebitCreditCSV(rows))}

	repo := repository.NewMemoryRepository()
	svc := service.NewImportService(repo, discardLogger())

	// detection
	analysis, err := svc.Analyze(ctx, input, "")
	require.NoError(t, err)
	require.True(t, analysis.Detected)

	cfg := analysis.Config
	assert.Equal(t, ';', cfg.Delimiter)
	assert.True(t, cfg.HasHeader)
	assert.Equal(t, 0, cfg.SkipLines)
	assert.Equal(t, normalizer.DateDMYSlash, cfg.DateFormat)
	assert.Equal(t, model.AmountDebitCredit, cfg.AmountMode)
	require.NotNil(t, cfg.Mapping.DebitAmount)
	require.NotNil(t, cfg.Mapping.CreditAmount)
	assert.Equal(t, 2, *cfg.Mapping.DebitAmount)
	assert.Equal(t, 3, *cfg.Mapping.CreditAmount)
	assert.Equal(t, 1, cfg.Mapping.Description)

	// parsing
	preview, err := svc.Preview(ctx, "bank", cfg, []service.Input{input})
	require.NoError(t, err)
	require.Len(t, preview.Rows, 50)
	assert.Equal(t, 0, preview.ErrorCount)
	for i, r := range preview.Rows {
		require.True(t, r.OK(), "row %d: %s", i, r.Error)
		assert.Equal(t, rows[i].Date.Format(time.DateOnly), r.Value.Date)
		assert.Equal(t, rows[i].Description, r.Value.Description)
		assert.True(t, rows[i].Amount().Equal(decimal.NewFromFloat(r.Value.Amount)), "row %d amount", i)
	}

	// first import
	dups, err := svc.CheckDuplicates(ctx, "bank", []service.Input{input}, preview.Rows)
	require.NoError(t, err)
	assert.False(t, dups.FileAlreadyImported)
	assert.Empty(t, dups.Duplicates)

	report, err := svc.Execute(ctx, service.ExecuteRequest{
		SourceName: "bank",
		Config:     cfg,
		Files:      []service.Input{input},
		Rows:       preview.Rows,
		Duplicates: dups,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, report.ImportedCount)
	assert.Equal(t, repository.StatusCompleted, report.Status)

	// the same file again: all 50 rows are stored duplicates
	dups, err = svc.CheckDuplicates(ctx, "bank", []service.Input{input}, preview.Rows)
	require.NoError(t, err)
	assert.True(t, dups.FileAlreadyImported)
	assert.Len(t, dups.Duplicates, 50)
	assert.Empty(t, dups.NewRows)
	for _, d := range dups.Duplicates {
		assert.False(t, d.InBatch)
	}
}

func TestImportFiles_StoresConfigAndCategories(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := testutil.NewGenerator(99).Rows(30, start, decimal.NewFromInt(2000))
	input := service.Input{Name: "export.csv", Data: []byte(testutil.SignedCSV(rows))}

	groceries := categorization.Keyword{
		ID: uuidFor(1), Text: "monoprix", CategoryID: uuidFor(2), Priority: 1, IsActive: true,
	}
	salary := categorization.Keyword{
		ID: uuidFor(3), Text: "salaire", CategoryID: uuidFor(4), Priority: 1, IsActive: true,
	}
	engine := categorization.NewEngine([]categorization.Keyword{groceries, salary})

	repo := repository.NewMemoryRepository()
	svc := service.NewImportService(repo, discardLogger()).
		WithCategorizationService(keywordCategorizer{engine: engine})

	report, err := svc.ImportFiles(ctx, "card", []service.Input{input}, service.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 30, report.ImportedCount)

	expected := 0
	for _, r := range rows {
		d := strings.ToLower(r.Description)
		if strings.Contains(d, "monoprix") || strings.Contains(d, "salaire") {
			expected++
		}
	}
	assert.Equal(t, expected, report.CategorizedCount)
	assert.Equal(t, 30-expected, report.UncategorizedCount)

	src, err := repo.GetSourceByName(ctx, "card")
	require.NoError(t, err)
	assert.Equal(t, ',', src.Config.Delimiter)
	assert.Equal(t, normalizer.DateYMDDash, src.Config.DateFormat)
	assert.Equal(t, model.AmountSingle, src.Config.AmountMode)

	_, err = svc.ImportFiles(ctx, "card", []service.Input{input}, service.ImportOptions{})
	assert.ErrorIs(t, err, service.ErrFileAlreadyImported)
}

func uuidFor(n byte) uuid.UUID {
	var id uuid.UUID
	id[15] = n
	return id
}
