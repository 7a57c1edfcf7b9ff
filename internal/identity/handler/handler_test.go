package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"altona/internal/identity/service"
	"altona/internal/identity/store"
	"altona/internal/identity/token"
	"altona/pkg/testutil"
)

type fixture struct {
	router *chi.Mux
	svc    *service.Service
	store  *store.Memory
}

// newFixture mounts all route groups without the auth middleware; tests
// stamp the session onto the request context directly.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemory()
	svc := service.NewService(st)
	tokens := token.NewManager("test-signing-key", time.Hour, "altona-test")
	h := New(svc, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterAuthenticated(r)
	h.RegisterAdmin(r)

	return &fixture{router: r, svc: svc, store: st}
}

func registerPayload() map[string]any {
	return map[string]any{
		"email":         "jan.smit@example.com",
		"password":      "correct horse battery",
		"first_name":    "Jan",
		"last_name":     "Smit",
		"phone_number":  "0821110000",
		"erf_number":    "1234",
		"street_number": "12",
		"street_name":   "Yellowwood Crescent",
		"is_resident":   true,
	}
}

func (f *fixture) registerAndApprove(t *testing.T) uuid.UUID {
	t.Helper()

	rr := testutil.DoRequest(f.router,
		testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", registerPayload()))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	resp := testutil.UnmarshalResponse[struct {
		UserID uuid.UUID `json:"user_id"`
	}](t, rr)

	_, err := f.svc.Approve(context.Background(), resp.UserID)
	require.NoError(t, err)
	return resp.UserID
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	payload := registerPayload()
	delete(payload, "email")

	rr := testutil.DoRequest(f.router,
		testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", payload))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	f.registerAndApprove(t)

	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "jan.smit@example.com",
		"password": "correct horse battery",
	}))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONHasKey(t, rr, "token")

	rr = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "jan.smit@example.com",
		"password": "wrong",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestMyProfileRequiresSession(t *testing.T) {
	f := newFixture(t)
	userID := f.registerAndApprove(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/users/me"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/users/me"), userID.String())
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONHasKey(t, rr, "user")
}

func TestAddVehicleForAnotherUserNeedsAdmin(t *testing.T) {
	f := newFixture(t)
	target := f.registerAndApprove(t)
	actor := uuid.New()

	body := map[string]string{"registration_number": "CJ 123 GP"}

	req := testutil.WithUserID(
		testutil.NewJSONRequest(t, http.MethodPost, "/users/"+target.String()+"/vehicles", body),
		actor.String())
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	req = testutil.WithAdmin(
		testutil.NewJSONRequest(t, http.MethodPost, "/users/"+target.String()+"/vehicles", body),
		actor.String())
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr, "registration_number", "CJ 123 GP")
}

func TestApproveUnknownUser(t *testing.T) {
	f := newFixture(t)

	req := testutil.WithAdmin(
		testutil.NewRequest(t, http.MethodPost, "/users/"+uuid.NewString()+"/approve"),
		uuid.NewString())
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
