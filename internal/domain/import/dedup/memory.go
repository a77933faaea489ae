package dedup

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
)

// MemoryStore keeps fingerprints in process. It backs dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]uuid.UUID
	byHash map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[string]uuid.UUID),
		byHash: make(map[string]uuid.UUID),
	}
}

// Add stores transactions and returns their new ids.
func (m *MemoryStore) Add(txs ...model.Transaction) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uuid.UUID, len(txs))
	for i, tx := range txs {
		id := uuid.New()
		if _, ok := m.byKey[tx.Key()]; !ok {
			m.byKey[tx.Key()] = id
		}
		ids[i] = id
	}
	return ids
}

// AddFile records an imported file hash.
func (m *MemoryStore) AddFile(hash string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.byHash[hash] = id
	return id
}

func (m *MemoryStore) FindExisting(_ context.Context, candidates []model.Transaction) ([]Existing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []Existing
	for i, c := range candidates {
		if id, ok := m.byKey[c.Key()]; ok {
			found = append(found, Existing{Index: i, ID: id})
		}
	}
	return found, nil
}

func (m *MemoryStore) FindFileByHash(_ context.Context, hash string) (*uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, ok := m.byHash[hash]; ok {
		return &id, nil
	}
	return nil, nil
}
