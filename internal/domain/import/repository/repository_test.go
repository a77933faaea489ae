package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
)

var sourceRowColumns = []string{
	"id", "name", "delimiter", "encoding", "date_format", "skip_lines", "has_header",
	"column_mapping", "amount_mode", "sign_convention", "created_at", "updated_at",
}

// ============================================================================
// Sources
// ============================================================================

func TestGetSourceByName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM import_sources WHERE name = \$1`).
		WithArgs("banque-populaire").
		WillReturnRows(pgxmock.NewRows(sourceRowColumns).AddRow(
			id, "banque-populaire", ";", "windows-1252", "DD/MM/YYYY", 2, true,
			[]byte(`{"date":0,"description":1,"debitAmount":2,"creditAmount":3}`),
			"debit_credit", "negative_expense", now, now,
		))

	src, err := repo.GetSourceByName(context.Background(), "banque-populaire")
	require.NoError(t, err)

	assert.Equal(t, id, src.ID)
	assert.Equal(t, ';', src.Config.Delimiter)
	assert.Equal(t, "windows-1252", src.Config.Encoding)
	assert.Equal(t, normalizer.DateDMYSlash, src.Config.DateFormat)
	assert.Equal(t, 2, src.Config.SkipLines)
	assert.Equal(t, model.AmountDebitCredit, src.Config.AmountMode)
	assert.Nil(t, src.Config.Mapping.Amount)
	assert.Equal(t, 2, *src.Config.Mapping.DebitAmount)
	assert.Equal(t, 3, *src.Config.Mapping.CreditAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSourceByName_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`FROM import_sources`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetSourceByName(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	cfg := model.DefaultSourceConfig()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO import_sources`).
		WithArgs(pgxmock.AnyArg(), "revolut", ";", "utf-8", "DD/MM/YYYY", 0, true,
			pgxmock.AnyArg(), "single", "negative_expense").
		WillReturnRows(pgxmock.NewRows(sourceRowColumns).AddRow(
			uuid.New(), "revolut", ";", "utf-8", "DD/MM/YYYY", 0, true,
			[]byte(`{"date":0,"description":1,"amount":2}`),
			"single", "negative_expense", now, now,
		))

	src, err := repo.UpsertSource(context.Background(), "revolut", cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, src.Config)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Duplicate lookups
// ============================================================================

func TestFindExisting_SingleRoundTrip(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	existing := uuid.New()

	candidates := []model.Transaction{
		{Date: "2024-01-02", Description: "CAFE", Amount: -3.5},
		{Date: "2024-01-03", Description: "PAIN", Amount: -1.2},
		{Date: "2024-01-04", Description: "EDF", Amount: -45.1},
	}

	mock.ExpectQuery(`unnest\(\$1::text\[\], \$2::text\[\], \$3::float8\[\]\) WITH ORDINALITY`).
		WithArgs(
			[]string{"2024-01-02", "2024-01-03", "2024-01-04"},
			[]string{"CAFE", "PAIN", "EDF"},
			[]float64{-3.5, -1.2, -45.1},
		).
		WillReturnRows(pgxmock.NewRows([]string{"idx", "id"}).AddRow(int64(2), existing))

	found, err := repo.FindExisting(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 1, found[0].Index)
	assert.Equal(t, existing, found[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExisting_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	found, err := NewPostgresRepository(mock).FindExisting(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFileByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id FROM imported_files`).
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectQuery(`SELECT id FROM imported_files`).
		WithArgs("def").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.FindFileByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	got, err = repo.FindFileByHash(context.Background(), "def")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Writes
// ============================================================================

func TestSaveImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	category := uuid.New()

	file := &ImportedFile{
		SourceID: uuid.New(),
		Filename: "releve-2024-01.csv",
		FileHash: "abc",
		RowCount: 2,
		Status:   StatusCompleted,
	}
	txs := []NewTransaction{
		{Transaction: model.Transaction{Date: "2024-01-02", Description: "CAFE", Amount: -3.5}, CategoryID: &category, OriginalDescription: "02/01/2024;CAFE;-3,50"},
		{Transaction: model.Transaction{Date: "2024-01-03", Description: "PAIN", Amount: -1.2}, OriginalDescription: "03/01/2024;PAIN;-1,20"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO imported_files`).
		WithArgs(pgxmock.AnyArg(), file.SourceID, "releve-2024-01.csv", "abc", 2, StatusCompleted, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"imported_at"}).AddRow(time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := repo.SaveImport(context.Background(), file, txs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEqual(t, uuid.Nil, file.ID)
	assert.False(t, file.ImportedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveImport_RollsBackOnCopyFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO imported_files`).
		WillReturnRows(pgxmock.NewRows([]string{"imported_at"}).AddRow(time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, transactionColumns).WillReturnError(boom)
	mock.ExpectRollback()

	_, err = repo.SaveImport(context.Background(), &ImportedFile{SourceID: uuid.New(), Status: StatusCompleted},
		[]NewTransaction{{Transaction: model.Transaction{Date: "2024-01-02", Description: "CAFE", Amount: -3.5}}})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveImport_InvalidDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresRepository(mock).SaveImport(context.Background(), &ImportedFile{},
		[]NewTransaction{{Transaction: model.Transaction{Date: "02/01/2024"}}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoredAmount(t *testing.T) {
	assert.Equal(t, -3.5, storedAmount(-3.5))
	assert.Equal(t, 1.01, storedAmount(1.005))
	assert.Equal(t, 1500.0, storedAmount(1500))
}
