// Package service implements the admin query surface: pending
// registrations flattened with their role records, dashboard stats, and
// the messaging group projections.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	identity "altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	tmodels "altona/internal/transition/models"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
)

// IdentityReader is the slice of the identity store the admin views read.
type IdentityReader interface {
	ListUsersByStatus(ctx context.Context, status identity.UserStatus) ([]*identity.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	FindResidentByUserID(ctx context.Context, userID uuid.UUID) (*identity.Resident, error)
	FindOwnerByUserID(ctx context.Context, userID uuid.UUID) (*identity.Owner, error)
	ListGateResidents(ctx context.Context) ([]*identity.Resident, error)
	ListGateOwners(ctx context.Context) ([]*identity.Owner, error)
}

// TransitionStats supplies the transition counters.
type TransitionStats interface {
	Stats(ctx context.Context) (*tmodels.Stats, error)
}

// JournalStats supplies the journal counters.
type JournalStats interface {
	Stats(ctx context.Context) (*jmodels.Stats, error)
}

// Service implements the admin queries.
type Service struct {
	identity    IdentityReader
	transitions TransitionStats
	journal     JournalStats
	logger      *slog.Logger
}

// NewService creates the admin service.
func NewService(identityReader IdentityReader, transitions TransitionStats, journal JournalStats, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identity:    identityReader,
		transitions: transitions,
		journal:     journal,
		logger:      logger,
	}
}

// PendingRegistration is a pending user flattened with their role-record
// fields for the approval queue.
type PendingRegistration struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhoneNumber  string    `json:"phone_number"`
	ErfNumber    string    `json:"erf_number"`
	StreetNumber string    `json:"street_number"`
	StreetName   string    `json:"street_name"`
	IsResident   bool      `json:"is_resident"`
	IsOwner      bool      `json:"is_owner"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingRegistrations lists users awaiting approval, oldest first.
func (s *Service) PendingRegistrations(ctx context.Context) ([]PendingRegistration, error) {
	users, err := s.identity.ListUsersByStatus(ctx, identity.UserPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending users")
	}

	out := make([]PendingRegistration, 0, len(users))
	for _, u := range users {
		reg := PendingRegistration{
			UserID:    u.ID,
			Email:     u.Email,
			CreatedAt: u.CreatedAt,
		}
		r, err := s.identity.FindResidentByUserID(ctx, u.ID)
		switch {
		case err == nil:
			reg.IsResident = true
			reg.FirstName = r.FirstName
			reg.LastName = r.LastName
			reg.PhoneNumber = r.PhoneNumber
			reg.ErfNumber = r.ErfNumber
			reg.StreetNumber = r.StreetNumber
			reg.StreetName = r.StreetName
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find resident record")
		}
		o, err := s.identity.FindOwnerByUserID(ctx, u.ID)
		switch {
		case err == nil:
			reg.IsOwner = true
			if reg.FirstName == "" {
				reg.FirstName = o.FirstName
				reg.LastName = o.LastName
				reg.PhoneNumber = o.PhoneNumber
				reg.ErfNumber = o.ErfNumber
				reg.StreetNumber = o.StreetNumber
				reg.StreetName = o.StreetName
			}
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find owner record")
		}
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DashboardStats bundles the counters the admin dashboard polls.
type DashboardStats struct {
	Transitions *tmodels.Stats `json:"transitions"`
	Journal     *jmodels.Stats `json:"journal"`
}

// Dashboard aggregates transition and journal stats.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	transitions, err := s.transitions.Stats(ctx)
	if err != nil {
		return nil, err
	}
	journal, err := s.journal.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{Transitions: transitions, Journal: journal}, nil
}

// Member is one addressable person in a messaging group.
type Member struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ErfNumber string    `json:"erf_number"`
}

// Groups are the messaging projections: set algebra over who holds which
// active role records.
type Groups struct {
	ResidentsGroup    []Member `json:"residents_group"`
	OwnersGroup       []Member `json:"owners_group"`
	OwnerResidents    []Member `json:"owner_residents"`
	NonResidentOwners []Member `json:"non_resident_owners"`
}

// MessagingGroups computes the four group projections.
func (s *Service) MessagingGroups(ctx context.Context) (*Groups, error) {
	residents, err := s.identity.ListGateResidents(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list active residents")
	}
	owners, err := s.identity.ListGateOwners(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list active owners")
	}

	residentSet := make(map[uuid.UUID]Member, len(residents))
	for _, r := range residents {
		residentSet[r.UserID] = s.member(ctx, r.UserID, r.FirstName, r.LastName, r.ErfNumber)
	}
	ownerSet := make(map[uuid.UUID]Member, len(owners))
	for _, o := range owners {
		ownerSet[o.UserID] = s.member(ctx, o.UserID, o.FirstName, o.LastName, o.ErfNumber)
	}

	g := &Groups{}
	for _, m := range residentSet {
		g.ResidentsGroup = append(g.ResidentsGroup, m)
		if _, ok := ownerSet[m.UserID]; ok {
			g.OwnerResidents = append(g.OwnerResidents, m)
		}
	}
	for id, m := range ownerSet {
		g.OwnersGroup = append(g.OwnersGroup, m)
		if _, ok := residentSet[id]; !ok {
			g.NonResidentOwners = append(g.NonResidentOwners, m)
		}
	}
	for _, members := range [][]Member{g.ResidentsGroup, g.OwnersGroup, g.OwnerResidents, g.NonResidentOwners} {
		sort.Slice(members, func(i, j int) bool {
			if members[i].LastName != members[j].LastName {
				return members[i].LastName < members[j].LastName
			}
			return members[i].UserID.String() < members[j].UserID.String()
		})
	}
	return g, nil
}

func (s *Service) member(ctx context.Context, userID uuid.UUID, firstName, lastName, erf string) Member {
	m := Member{UserID: userID, FirstName: firstName, LastName: lastName, ErfNumber: erf}
	if u, err := s.identity.FindUserByID(ctx, userID); err == nil {
		m.Email = u.Email
	}
	return m
}
