package collection

import (
	"fmt"
	"sync"
)

// Manager is the set of collections served by one process.
type Manager struct {
	mu    sync.RWMutex
	byID  map[string]*Collection
	order []*Collection
}

func NewManager() *Manager {
	return &Manager{byID: make(map[string]*Collection)}
}

// Add registers c. Ids must be unique.
func (m *Manager) Add(c *Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID()]; ok {
		return fmt.Errorf("collection %q already registered", c.ID())
	}
	m.byID[c.ID()] = c
	m.order = append(m.order, c)
	return nil
}

func (m *Manager) Get(id string) (*Collection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	return c, ok
}

// All returns the collections in registration order.
func (m *Manager) All() []*Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Collection, len(m.order))
	copy(out, m.order)
	return out
}
