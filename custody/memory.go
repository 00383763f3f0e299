package custody

import (
	"context"
	"sync"

	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/types"
)

// compile-time interface check
var _ Ledger = (*Memory)(nil)

// Memory is an in-process ownership ledger.
type Memory struct {
	mu      sync.RWMutex
	holders map[string]types.Account
}

// NewMemory creates an empty in-memory ownership ledger.
func NewMemory() *Memory {
	return &Memory{holders: make(map[string]types.Account)}
}

// RegisterNew implements Ledger.
func (m *Memory) RegisterNew(_ context.Context, assetID id.ID, owner types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assetID.String()
	if _, exists := m.holders[key]; exists {
		return ErrAlreadyRegistered
	}
	m.holders[key] = owner
	return nil
}

// CurrentHolder implements Ledger.
func (m *Memory) CurrentHolder(_ context.Context, assetID id.ID) (types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holder, ok := m.holders[assetID.String()]
	if !ok {
		return "", ErrUnknownAsset
	}
	return holder, nil
}

// TransferCustody implements Ledger.
func (m *Memory) TransferCustody(_ context.Context, assetID id.ID, from, to types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assetID.String()
	holder, ok := m.holders[key]
	if !ok {
		return ErrUnknownAsset
	}
	if holder != from {
		return ErrNotHolder
	}
	m.holders[key] = to
	return nil
}
