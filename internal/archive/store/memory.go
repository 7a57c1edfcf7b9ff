package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"altona/internal/archive/models"
	"altona/pkg/platform/sentinel"
)

// Memory is a map-backed archive store used by tests.
type Memory struct {
	mu         sync.RWMutex
	archives   map[uuid.UUID]*models.Archive
	deletions  []*models.DeletionLogEntry
	complaints map[uuid.UUID]*models.Complaint
}

// NewMemory creates an empty in-memory archive store.
func NewMemory() *Memory {
	return &Memory{
		archives:   make(map[uuid.UUID]*models.Archive),
		complaints: make(map[uuid.UUID]*models.Complaint),
	}
}

func (s *Memory) InsertArchive(_ context.Context, a *models.Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.archives[a.ID] = &cp
	return nil
}

func (s *Memory) FindArchiveByID(_ context.Context, id uuid.UUID) (*models.Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.archives[id]
	if !ok {
		return nil, fmt.Errorf("archive %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *Memory) ListArchives(_ context.Context) ([]*models.Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Archive, 0, len(s.archives))
	for _, a := range s.archives {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) ListExpiredArchives(_ context.Context, before time.Time) ([]*models.Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Archive
	for _, a := range s.archives {
		if a.RetentionUntil != nil && a.RetentionUntil.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Memory) DeleteArchive(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.archives, id)
	return nil
}

func (s *Memory) InsertDeletionLog(_ context.Context, e *models.DeletionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.deletions = append(s.deletions, &cp)
	return nil
}

func (s *Memory) ListDeletionLog(_ context.Context) ([]*models.DeletionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.DeletionLogEntry, 0, len(s.deletions))
	for _, e := range s.deletions {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.After(out[j].DeletedAt) })
	return out, nil
}

// AddComplaint seeds a complaint; tests use it to verify deletion order.
func (s *Memory) AddComplaint(c *models.Complaint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.complaints[c.ID] = &cp
}

func (s *Memory) ListComplaintsByUser(_ context.Context, userID uuid.UUID) ([]*models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Complaint
	for _, c := range s.complaints {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) DeleteComplaintsByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.complaints {
		if c.UserID == userID {
			delete(s.complaints, id)
		}
	}
	return nil
}
