package tools

import (
	"context"
	"sync"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// MemoryCartSessions is the process-local session to cart map.
type MemoryCartSessions struct {
	mu    sync.RWMutex
	carts map[string]string
}

func NewMemoryCartSessions() *MemoryCartSessions {
	return &MemoryCartSessions{carts: make(map[string]string)}
}

func (m *MemoryCartSessions) GetCartID(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.carts[key]
	return id, ok, nil
}

func (m *MemoryCartSessions) SetCartID(_ context.Context, key, cartID string) error {
	m.mu.Lock()
	m.carts[key] = cartID
	m.mu.Unlock()
	return nil
}

func (m *MemoryCartSessions) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.carts, key)
	m.mu.Unlock()
	return nil
}

var _ model.CartSessionStore = (*MemoryCartSessions)(nil)
