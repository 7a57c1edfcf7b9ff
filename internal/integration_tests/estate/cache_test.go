//go:build integration

package estate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateservice "altona/internal/gateregister/service"
	identityservice "altona/internal/identity/service"
	identitystore "altona/internal/identity/store"
	journalservice "altona/internal/journal/service"
	journalstore "altona/internal/journal/store"
	"altona/pkg/testutil/containers"
)

func TestGateRegisterSnapshotCache(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	identityStore := identitystore.NewMemory()
	journalSvc := journalservice.NewService(journalstore.NewMemory(),
		journalservice.WithIdentityReader(identityStore))
	identitySvc := identityservice.NewService(identityStore)
	gateSvc := gateservice.NewService(identityStore, journalSvc,
		gateservice.WithCache(rc.Client, time.Minute))

	reg, err := identitySvc.Register(ctx, identityservice.RegisterInput{
		Email:        "jan.smit@example.com",
		Password:     "correct horse battery",
		FirstName:    "Jan",
		LastName:     "Smit",
		PhoneNumber:  "0821110000",
		ErfNumber:    "1234",
		StreetNumber: "12",
		StreetName:   "Yellowwood Crescent",
		IsResident:   true,
	})
	require.NoError(t, err)
	_, err = identitySvc.Approve(ctx, reg.User.ID)
	require.NoError(t, err)

	rows, err := gateSvc.Build(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Second build is served from the snapshot even after the store moves on.
	require.NoError(t, identityStore.DeleteUser(ctx, reg.User.ID))
	cached, err := gateSvc.Build(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	gateSvc.InvalidateCache(ctx)
	fresh, err := gateSvc.Build(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
