package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/emrgen/plm/internal/model"
)

// ComponentCache caches the direct component list of a parent part.
type ComponentCache interface {
	// GetComponents returns the cached list and whether it was present.
	GetComponents(ctx context.Context, code string) ([]*model.Component, bool, error)
	// SetComponents stores the component list of a parent.
	SetComponents(ctx context.Context, code string, components []*model.Component) error
	// InvalidateComponents drops the cached lists of the given parents.
	InvalidateComponents(ctx context.Context, codes ...string) error
}

func componentsKey(code string) string {
	return "plm:bom:components:" + strings.ToUpper(code)
}

var _ ComponentCache = (*Nop)(nil)

// Nop never caches.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (n *Nop) GetComponents(context.Context, string) ([]*model.Component, bool, error) {
	return nil, false, nil
}

func (n *Nop) SetComponents(context.Context, string, []*model.Component) error { return nil }

func (n *Nop) InvalidateComponents(context.Context, ...string) error { return nil }

var _ ComponentCache = (*Memory)(nil)

// Memory is a process local component cache.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]*model.Component
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]*model.Component)}
}

func (m *Memory) GetComponents(_ context.Context, code string) ([]*model.Component, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components, ok := m.items[componentsKey(code)]
	if !ok {
		return nil, false, nil
	}

	return cloneComponents(components), true, nil
}

func (m *Memory) SetComponents(_ context.Context, code string, components []*model.Component) error {
	m.mu.Lock()
	m.items[componentsKey(code)] = cloneComponents(components)
	m.mu.Unlock()

	return nil
}

func (m *Memory) InvalidateComponents(_ context.Context, codes ...string) error {
	m.mu.Lock()
	for _, code := range codes {
		delete(m.items, componentsKey(code))
	}
	m.mu.Unlock()

	return nil
}

func cloneComponents(in []*model.Component) []*model.Component {
	out := make([]*model.Component, 0, len(in))
	for _, c := range in {
		clone := *c
		out = append(out, &clone)
	}

	return out
}
