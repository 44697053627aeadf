// Package directory provides the principal directory adapters the gate
// resolves verified token subjects against.
package directory

import (
	"context"
	"sync"

	"github.com/quernstone/portcullis/internal/core"
)

// Memory is a config-seeded principal directory. It serves deployments
// where the known principals are few and ship with the service config.
type Memory struct {
	mu         sync.RWMutex
	principals map[string]core.Principal
}

var _ core.Directory = (*Memory)(nil)

// NewMemory builds a Memory directory holding the given seed records.
// Later seeds win on duplicate IDs.
func NewMemory(seeds []core.Principal) *Memory {
	m := &Memory{
		principals: make(map[string]core.Principal, len(seeds)),
	}
	for _, p := range seeds {
		m.principals[p.ID] = p
	}
	return m
}

func (m *Memory) FindByID(_ context.Context, id string) (*core.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}
	// Hand out a copy, attribute map included; the seed records stay
	// immutable no matter what handlers do with the result.
	out := p
	if p.Attributes != nil {
		out.Attributes = make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out, nil
}
