package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
)

func TestMemoryRepository_Sources(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetSourceByName(ctx, "bank")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	first, err := repo.UpsertSource(ctx, "bank", model.DefaultSourceConfig())
	require.NoError(t, err)

	cfg := model.DefaultSourceConfig()
	cfg.Delimiter = ','
	second, err := repo.UpsertSource(ctx, "bank", cfg)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetSourceByName(ctx, "bank")
	require.NoError(t, err)
	assert.Equal(t, ',', got.Config.Delimiter)

	_, err = repo.UpsertSource(ctx, "another", cfg)
	require.NoError(t, err)
	sources, err := repo.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "another", sources[0].Name)
}

func TestMemoryRepository_SaveImportFeedsDuplicateChecks(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	stored := model.Transaction{Date: "2024-01-02", Description: "CAFE", Amount: -3.504}
	file := &ImportedFile{SourceID: uuid.New(), FileHash: "abc", Status: StatusCompleted}
	n, err := repo.SaveImport(ctx, file, []NewTransaction{{Transaction: stored}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, uuid.Nil, file.ID)

	// amounts are matched at stored precision
	existing, err := repo.FindExisting(ctx, []model.Transaction{{Date: "2024-01-02", Description: "CAFE", Amount: -3.5}})
	require.NoError(t, err)
	assert.Len(t, existing, 1)

	id, err := repo.FindFileByHash(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Len(t, repo.Transactions(), 1)
}

func TestMemoryRepository_FailedFileCanBeRetried(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.RecordFile(ctx, &ImportedFile{FileHash: "abc", Status: StatusError}))

	id, err := repo.FindFileByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Len(t, repo.Files(), 1)
}
