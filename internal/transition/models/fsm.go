package models

import (
	"time"

	identity "altona/internal/identity/models"
)

// validNext is the request lifecycle: a linear admin flow with cancellation
// open from every non-terminal state.
var validNext = map[RequestStatus][]RequestStatus{
	StatusPendingReview:      {StatusInProgress, StatusCancelled},
	StatusInProgress:         {StatusAwaitingDocs, StatusCancelled},
	StatusAwaitingDocs:       {StatusReadyForTransition, StatusCancelled},
	StatusReadyForTransition: {StatusCompleted, StatusCancelled},
	StatusCompleted:          {},
	StatusCancelled:          {},
}

// CanTransition reports whether a status change is allowed.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DerivePriority classifies a request by how soon the move-out happens.
// Under 7 days is an emergency, under 30 urgent, anything else standard.
func DerivePriority(intendedMoveout *time.Time, now time.Time) Priority {
	if intendedMoveout == nil {
		return PriorityStandard
	}
	until := intendedMoveout.Sub(now)
	switch {
	case until < 7*24*time.Hour:
		return PriorityEmergency
	case until < 30*24*time.Hour:
		return PriorityUrgent
	default:
		return PriorityStandard
	}
}

// Classify selects the migration algorithm for a request, given whether the
// incoming person is the same natural person (matched by email) and whether
// a linkable pending user exists.
func Classify(r *Request, samePerson, hasLinkedUser bool) MigrationKind {
	if r.NewOccupantType == OccupantTerminated || r.RequestType == RequestExit {
		return MigrationTermination
	}
	if samePerson {
		return MigrationRoleChange
	}
	if r.NewOccupantType == OccupantUnknown || r.NewOccupantType == "" {
		if !hasLinkedUser {
			return MigrationTermination
		}
		return MigrationCompleteReplacement
	}
	if r.CurrentRole == identity.RoleOwnerResident &&
		(r.NewOccupantType == OccupantResident || r.NewOccupantType == OccupantOwner) {
		return MigrationPartialReplacement
	}
	return MigrationCompleteReplacement
}
