package categorization

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Repository Tests with pgxmock
// ============================================================================

func TestRepository_ListActiveKeywords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)

	supplier := uuid.New()
	k1, k2 := uuid.New(), uuid.New()
	cat := uuid.New()

	mock.ExpectQuery(`SELECT id, keyword, category_id, supplier_id, priority, is_active`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "keyword", "category_id", "supplier_id", "priority", "is_active",
		}).
			AddRow(k1, "Café", cat, &supplier, 5, true).
			AddRow(k2, "carte", cat, (*uuid.UUID)(nil), 1, true))

	keywords, err := repo.ListActiveKeywords(context.Background())
	require.NoError(t, err)
	require.Len(t, keywords, 2)

	assert.Equal(t, "Café", keywords[0].Text)
	assert.Equal(t, 5, keywords[0].Priority)
	assert.Equal(t, supplier, *keywords[0].SupplierID)
	assert.Nil(t, keywords[1].SupplierID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListActiveKeywords_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	boom := errors.New("connection refused")

	mock.ExpectQuery(`FROM keywords`).WillReturnError(boom)

	_, err = repo.ListActiveKeywords(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateKeyword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	cat := uuid.New()

	mock.ExpectExec(`INSERT INTO keywords`).
		WithArgs(pgxmock.AnyArg(), "loyer", cat, pgxmock.AnyArg(), 3, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	k, err := repo.CreateKeyword(context.Background(), "loyer", cat, nil, 3)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, k.ID)
	assert.True(t, k.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetKeywordActive_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectExec(`UPDATE keywords SET is_active`).
		WithArgs(id, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.SetKeywordActive(context.Background(), id, false)
	assert.ErrorIs(t, err, ErrKeywordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindCategoryByName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)

	mock.ExpectQuery(`SELECT id, name, type, is_active FROM categories`).
		WithArgs("Courses").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindCategoryByName(context.Background(), "Courses")
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	id := uuid.New()
	mock.ExpectQuery(`SELECT id, name, type, is_active FROM categories`).
		WithArgs("Loisirs").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "type", "is_active"}).
			AddRow(id, "Loisirs", "expense", true))

	c, err := repo.FindCategoryByName(context.Background(), "Loisirs")
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
