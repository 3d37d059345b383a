package account

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository creates a new in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]Account)}
}

// Save stores acc under its identifier, replacing any previous entry.
func (m *MemoryRepository) Save(acc Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[acc.Identifier] = acc
}

func (m *MemoryRepository) GetAccount(_ context.Context, identifier string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[identifier]
	if !ok {
		return nil, ErrNotFound
	}

	return &acc, nil
}

// Ping always succeeds.
func (m *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

// Compile-time check.
var _ Repository = (*MemoryRepository)(nil)
