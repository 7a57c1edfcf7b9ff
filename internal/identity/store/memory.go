package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"altona/internal/identity/models"
	"altona/pkg/platform/sentinel"
)

// Memory is a map-backed identity store used by tests and local runs.
type Memory struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*models.User
	residents map[uuid.UUID]*models.Resident
	owners    map[uuid.UUID]*models.Owner
	vehicles  map[uuid.UUID]*models.Vehicle
}

// NewMemory creates an empty in-memory identity store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[uuid.UUID]*models.User),
		residents: make(map[uuid.UUID]*models.Resident),
		owners:    make(map[uuid.UUID]*models.Owner),
		vehicles:  make(map[uuid.UUID]*models.Vehicle),
	}
}

func (s *Memory) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrConflict)
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Memory) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Memory) FindUsersByEmail(_ context.Context, email string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrNotFound)
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *Memory) ListUsersByStatus(_ context.Context, status models.UserStatus) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.Status == status {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) CreateResident(_ context.Context, r *models.Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.residents {
		if existing.UserID == r.UserID {
			return fmt.Errorf("resident for user %s: %w", r.UserID, sentinel.ErrConflict)
		}
	}
	cp := *r
	s.residents[r.ID] = &cp
	return nil
}

func (s *Memory) FindResidentByUserID(_ context.Context, userID uuid.UUID) (*models.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.residents {
		if r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("resident for user %s: %w", userID, sentinel.ErrNotFound)
}

func (s *Memory) FindResidentByID(_ context.Context, id uuid.UUID) (*models.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.residents[id]
	if !ok {
		return nil, fmt.Errorf("resident %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Memory) ListResidentsByErf(_ context.Context, erfNumber string) ([]*models.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Resident
	for _, r := range s.residents {
		if r.ErfNumber == erfNumber {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Memory) ListGateResidents(_ context.Context) ([]*models.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Resident
	for _, r := range s.residents {
		u, ok := s.users[r.UserID]
		if !ok || !u.GateVisible() || !r.Status.GateVisible() {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) UpdateResident(_ context.Context, r *models.Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.residents[r.ID]; !ok {
		return fmt.Errorf("resident %s: %w", r.ID, sentinel.ErrNotFound)
	}
	cp := *r
	s.residents[r.ID] = &cp
	return nil
}

func (s *Memory) DeleteResident(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.residents[id]; !ok {
		return fmt.Errorf("resident %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.residents, id)
	return nil
}

func (s *Memory) CreateOwner(_ context.Context, o *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.owners {
		if existing.UserID == o.UserID {
			return fmt.Errorf("owner for user %s: %w", o.UserID, sentinel.ErrConflict)
		}
	}
	cp := *o
	s.owners[o.ID] = &cp
	return nil
}

func (s *Memory) FindOwnerByUserID(_ context.Context, userID uuid.UUID) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.owners {
		if o.UserID == userID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("owner for user %s: %w", userID, sentinel.ErrNotFound)
}

func (s *Memory) FindOwnerByID(_ context.Context, id uuid.UUID) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	if !ok {
		return nil, fmt.Errorf("owner %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *Memory) ListOwnersByErf(_ context.Context, erfNumber string) ([]*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Owner
	for _, o := range s.owners {
		if o.ErfNumber == erfNumber {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Memory) ListGateOwners(_ context.Context) ([]*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Owner
	for _, o := range s.owners {
		u, ok := s.users[o.UserID]
		if !ok || !u.GateVisible() || !o.Status.GateVisible() {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) UpdateOwner(_ context.Context, o *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[o.ID]; !ok {
		return fmt.Errorf("owner %s: %w", o.ID, sentinel.ErrNotFound)
	}
	cp := *o
	s.owners[o.ID] = &cp
	return nil
}

func (s *Memory) DeleteOwner(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[id]; !ok {
		return fmt.Errorf("owner %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.owners, id)
	return nil
}

func (s *Memory) CreateVehicle(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Status == models.VehicleActive {
		for _, existing := range s.vehicles {
			if existing.Status == models.VehicleActive && existing.RegistrationNumber == v.RegistrationNumber {
				return fmt.Errorf("vehicle %s: %w", v.RegistrationNumber, sentinel.ErrConflict)
			}
		}
	}
	cp := *v
	s.vehicles[v.ID] = &cp
	return nil
}

func (s *Memory) FindVehicleByID(_ context.Context, id uuid.UUID) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (s *Memory) FindActiveVehicleByRegistration(_ context.Context, registration string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vehicles {
		if v.Status == models.VehicleActive && v.RegistrationNumber == registration {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("vehicle %s: %w", registration, sentinel.ErrNotFound)
}

func (s *Memory) ListVehiclesByResidentID(_ context.Context, residentID uuid.UUID) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if v.ResidentID != nil && *v.ResidentID == residentID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Memory) ListVehiclesByOwnerID(_ context.Context, ownerID uuid.UUID) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if v.OwnerID != nil && *v.OwnerID == ownerID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Memory) ListActiveVehicles(_ context.Context) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if v.Status == models.VehicleActive {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Memory) UpdateVehicle(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[v.ID]; !ok {
		return fmt.Errorf("vehicle %s: %w", v.ID, sentinel.ErrNotFound)
	}
	cp := *v
	s.vehicles[v.ID] = &cp
	return nil
}

func (s *Memory) DeleteVehicle(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[id]; !ok {
		return fmt.Errorf("vehicle %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.vehicles, id)
	return nil
}
