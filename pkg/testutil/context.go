package testutil

import (
	"net/http"

	"altona/internal/platform/middleware"
)

// WithUserID stamps a request with an authenticated session the way
// RequireAuth would.
func WithUserID(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, false))
}

// WithAdmin stamps a request with an admin session.
func WithAdmin(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, true))
}
