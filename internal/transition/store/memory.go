package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"altona/internal/transition/models"
	"altona/pkg/platform/sentinel"
)

// Memory is a map-backed transition store used by tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*models.Request
	updates  map[uuid.UUID][]*models.Update
	vehicles map[uuid.UUID][]*models.Vehicle
}

// NewMemory creates an empty in-memory transition store.
func NewMemory() *Memory {
	return &Memory{
		requests: make(map[uuid.UUID]*models.Request),
		updates:  make(map[uuid.UUID][]*models.Update),
		vehicles: make(map[uuid.UUID][]*models.Vehicle),
	}
}

func (s *Memory) CreateRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("transition request %s: %w", r.ID, sentinel.ErrConflict)
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Memory) FindRequestByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("transition request %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Memory) ListRequests(_ context.Context, f Filter) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.Priority != nil && r.Priority != *f.Priority {
			continue
		}
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.Erf != "" && r.ErfNumber != f.Erf {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) UpdateRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return fmt.Errorf("transition request %s: %w", r.ID, sentinel.ErrNotFound)
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

// DeleteRequestsByUser removes all requests a user opened, with their
// updates and declared vehicles. Used by archival.
func (s *Memory) DeleteRequestsByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.requests {
		if r.UserID != userID {
			continue
		}
		delete(s.requests, id)
		delete(s.updates, id)
		delete(s.vehicles, id)
	}
	return nil
}

func (s *Memory) InsertUpdate(_ context.Context, u *models.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.updates[u.RequestID] = append(s.updates[u.RequestID], &cp)
	return nil
}

func (s *Memory) ListUpdates(_ context.Context, requestID uuid.UUID) ([]*models.Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	updates := s.updates[requestID]
	out := make([]*models.Update, 0, len(updates))
	for _, u := range updates {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) InsertVehicle(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vehicles[v.RequestID] = append(s.vehicles[v.RequestID], &cp)
	return nil
}

func (s *Memory) ListVehicles(_ context.Context, requestID uuid.UUID) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vehicles := s.vehicles[requestID]
	out := make([]*models.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.Stats{
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for _, r := range s.requests {
		stats.ByStatus[string(r.Status)]++
		stats.ByPriority[string(r.Priority)]++
		stats.ByType[string(r.RequestType)]++
	}
	return stats, nil
}
