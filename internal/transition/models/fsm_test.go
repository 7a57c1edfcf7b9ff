package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	identity "altona/internal/identity/models"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPendingReview, StatusInProgress))
	assert.True(t, CanTransition(StatusInProgress, StatusAwaitingDocs))
	assert.True(t, CanTransition(StatusAwaitingDocs, StatusReadyForTransition))
	assert.True(t, CanTransition(StatusReadyForTransition, StatusCompleted))

	// Cancellation is open from every non-terminal state.
	for _, from := range []RequestStatus{
		StatusPendingReview, StatusInProgress, StatusAwaitingDocs, StatusReadyForTransition,
	} {
		assert.True(t, CanTransition(from, StatusCancelled), "from=%s", from)
	}

	assert.False(t, CanTransition(StatusPendingReview, StatusCompleted))
	assert.False(t, CanTransition(StatusPendingReview, StatusAwaitingDocs))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusInProgress))
	assert.False(t, CanTransition(StatusCompleted, StatusPendingReview))
}

func TestDerivePriority(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	assert.Equal(t, PriorityStandard, DerivePriority(nil, now))
	assert.Equal(t, PriorityEmergency, DerivePriority(in(24*time.Hour), now))
	assert.Equal(t, PriorityEmergency, DerivePriority(in(6*24*time.Hour), now))
	assert.Equal(t, PriorityUrgent, DerivePriority(in(7*24*time.Hour), now))
	assert.Equal(t, PriorityUrgent, DerivePriority(in(29*24*time.Hour), now))
	assert.Equal(t, PriorityStandard, DerivePriority(in(30*24*time.Hour), now))
	assert.Equal(t, PriorityStandard, DerivePriority(in(90*24*time.Hour), now))
}

func TestClassify(t *testing.T) {
	base := func() *Request {
		return &Request{
			CurrentRole:      identity.RoleResident,
			RequestType:      RequestMoveOut,
			NewOccupantType:  OccupantResident,
			NewOccupantEmail: "new@example.com",
		}
	}

	t.Run("termination wins", func(t *testing.T) {
		r := base()
		r.NewOccupantType = OccupantTerminated
		assert.Equal(t, MigrationTermination, Classify(r, false, false))

		r = base()
		r.RequestType = RequestExit
		assert.Equal(t, MigrationTermination, Classify(r, false, false))
	})

	t.Run("same person is a role change", func(t *testing.T) {
		assert.Equal(t, MigrationRoleChange, Classify(base(), true, false))
	})

	t.Run("owner_resident handing one role is partial", func(t *testing.T) {
		r := base()
		r.CurrentRole = identity.RoleOwnerResident
		r.NewOccupantType = OccupantResident
		assert.Equal(t, MigrationPartialReplacement, Classify(r, false, true))
	})

	t.Run("full handover is complete replacement", func(t *testing.T) {
		assert.Equal(t, MigrationCompleteReplacement, Classify(base(), false, false))
	})

	t.Run("no occupant and nothing linkable is termination", func(t *testing.T) {
		r := base()
		r.NewOccupantType = OccupantUnknown
		assert.Equal(t, MigrationTermination, Classify(r, false, false))
		assert.Equal(t, MigrationCompleteReplacement, Classify(r, false, true))
	})
}
