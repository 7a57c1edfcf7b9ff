package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"altona/internal/directory/models"
	"altona/pkg/platform/sentinel"
)

// Memory is a map-backed directory store used by tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	mappings map[string]*models.Mapping
}

// NewMemory creates an empty in-memory directory store.
func NewMemory() *Memory {
	return &Memory{mappings: make(map[string]*models.Mapping)}
}

func (s *Memory) Upsert(_ context.Context, m *models.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	if existing, ok := s.mappings[m.ErfNumber]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	s.mappings[m.ErfNumber] = &cp
	return nil
}

func (s *Memory) FindByErf(_ context.Context, erfNumber string) (*models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[erfNumber]
	if !ok {
		return nil, fmt.Errorf("erf %s: %w", erfNumber, sentinel.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) List(_ context.Context) ([]*models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ErfNumber < out[j].ErfNumber })
	return out, nil
}
