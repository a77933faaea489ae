package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
)

// MemoryRepository is an in-process ImportRepository. It backs offline
// previews and end-to-end tests.
type MemoryRepository struct {
	*dedup.MemoryStore

	mu           sync.Mutex
	sources      map[string]*Source
	files        []ImportedFile
	transactions []NewTransaction
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		MemoryStore: dedup.NewMemoryStore(),
		sources:     make(map[string]*Source),
	}
}

func (m *MemoryRepository) GetSourceByName(_ context.Context, name string) (*Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sources[name]
	if !ok {
		return nil, ErrSourceNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MemoryRepository) UpsertSource(_ context.Context, name string, cfg model.SourceConfig) (*Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s, ok := m.sources[name]
	if !ok {
		s = &Source{ID: uuid.New(), Name: name, CreatedAt: now}
		m.sources[name] = s
	}
	s.Config = cfg
	s.UpdatedAt = now
	copied := *s
	return &copied, nil
}

func (m *MemoryRepository) ListSources(context.Context) ([]Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveImport makes the file hash and the transactions visible to later duplicate checks.
func (m *MemoryRepository) SaveImport(_ context.Context, file *ImportedFile, txs []NewTransaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	file.ImportedAt = time.Now()
	m.files = append(m.files, *file)
	m.transactions = append(m.transactions, txs...)

	values := make([]model.Transaction, len(txs))
	for i, t := range txs {
		values[i] = t.Transaction
		values[i].Amount = storedAmount(t.Amount)
	}
	m.Add(values...)
	if file.Status != StatusError {
		m.AddFile(file.FileHash)
	}
	return len(txs), nil
}

func (m *MemoryRepository) RecordFile(_ context.Context, file *ImportedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	file.ImportedAt = time.Now()
	m.files = append(m.files, *file)
	if file.Status != StatusError {
		m.AddFile(file.FileHash)
	}
	return nil
}

// Transactions returns every stored transaction in insertion order.
func (m *MemoryRepository) Transactions() []NewTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NewTransaction(nil), m.transactions...)
}

// Files returns every imported-file record in insertion order.
func (m *MemoryRepository) Files() []ImportedFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ImportedFile(nil), m.files...)
}
