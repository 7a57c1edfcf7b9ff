package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"altona/internal/journal/models"
	"altona/pkg/platform/sentinel"
)

// Memory is a slice-backed journal store used by tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	changes []*models.Change
}

// NewMemory creates an empty in-memory journal store.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Insert(_ context.Context, c *models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.changes = append(s.changes, &cp)
	return nil
}

func (s *Memory) FindByID(_ context.Context, id uuid.UUID) (*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.changes {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("change %s: %w", id, sentinel.ErrNotFound)
}

func (s *Memory) List(_ context.Context, f Filter) ([]*models.Change, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Change
	for _, c := range s.changes {
		if f.Reviewed != nil && c.AdminReviewed != *f.Reviewed {
			continue
		}
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		if f.Critical != nil && models.IsCriticalField(c.FieldName) != *f.Critical {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if f.CriticalFirst {
			ci, cj := models.IsCriticalField(matched[i].FieldName), models.IsCriticalField(matched[j].FieldName)
			if ci != cj {
				return ci
			}
		}
		return matched[i].ChangeTimestamp.After(matched[j].ChangeTimestamp)
	})

	total := len(matched)
	if f.Limit > 0 {
		start := int(f.Offset)
		if start > total {
			start = total
		}
		end := start + int(f.Limit)
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (s *Memory) MarkReviewed(_ context.Context, ids []uuid.UUID, reviewer string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	n := 0
	for _, c := range s.changes {
		if _, ok := idSet[c.ID]; !ok || c.AdminReviewed {
			continue
		}
		c.AdminReviewed = true
		c.AdminReviewer = reviewer
		ts := at
		c.ReviewTimestamp = &ts
		n++
	}
	return n, nil
}

func (s *Memory) FindLatestUnreviewed(_ context.Context, userID uuid.UUID, fieldName string) (*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Change
	for _, c := range s.changes {
		if c.UserID != userID || c.FieldName != fieldName || c.AdminReviewed {
			continue
		}
		if latest == nil || c.ChangeTimestamp.After(latest.ChangeTimestamp) {
			latest = c
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("unreviewed change for user %s field %s: %w",
			userID, fieldName, sentinel.ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

func (s *Memory) MarkExported(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	for _, c := range s.changes {
		if _, ok := idSet[c.ID]; !ok {
			continue
		}
		c.ExportedToExternal = true
		ts := at
		c.ExportTimestamp = &ts
	}
	return nil
}

func (s *Memory) ListUnreviewedByUser(_ context.Context) (map[uuid.UUID][]*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := make(map[uuid.UUID][]*models.Change)
	for _, c := range s.changes {
		if c.AdminReviewed {
			continue
		}
		cp := *c
		byUser[c.UserID] = append(byUser[c.UserID], &cp)
	}
	return byUser, nil
}

func (s *Memory) Stats(_ context.Context, now time.Time) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.Stats{
		ByChangeType: make(map[string]int),
		ByFieldName:  make(map[string]int),
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)
	for _, c := range s.changes {
		if !c.ChangeTimestamp.Before(dayStart) {
			stats.Today++
		}
		if !c.ChangeTimestamp.Before(weekStart) {
			stats.LastSevenDays++
		}
		if !c.AdminReviewed {
			if c.Critical() {
				stats.CriticalPending++
			} else {
				stats.NonCriticalPending++
			}
		}
		stats.ByChangeType[string(c.ChangeType)]++
		stats.ByFieldName[c.FieldName]++
	}
	return stats, nil
}
