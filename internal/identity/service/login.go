package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"altona/internal/identity/models"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/secrets"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string, isAdmin bool) (token string, expiresAt time.Time, err error)
}

// Session is the result of a successful login.
type Session struct {
	Token                 string       `json:"token"`
	ExpiresAt             time.Time    `json:"expires_at"`
	UserID                uuid.UUID    `json:"user_id"`
	Role                  models.Role  `json:"role"`
	PasswordResetRequired bool         `json:"password_reset_required"`
}

// Login authenticates by email and password. Email is non-unique, so the
// password is verified against every account carrying it; an optional ERF
// hint disambiguates multi-property people whose accounts share a password.
func (s *Service) Login(ctx context.Context, issuer TokenIssuer, email, password, erfHint string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}

	users, err := s.store.FindUsersByEmail(ctx, email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find accounts by email")
	}

	var matches []*models.User
	for _, u := range users {
		if verifyErr := secrets.Verify(password, u.PasswordHash); verifyErr == nil {
			matches = append(matches, u)
		}
	}
	if len(matches) == 0 {
		s.logger.WarnContext(ctx, "login failed", slog.String("email", email))
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	user := s.pickAccount(ctx, matches, erfHint)
	switch user.Status {
	case models.UserPending:
		return nil, dErrors.New(dErrors.CodeForbidden, "registration is pending approval")
	case models.UserInactive, models.UserArchived:
		return nil, dErrors.New(dErrors.CodeForbidden, "account is no longer active")
	}

	token, expiresAt, err := issuer.Issue(user.ID.String(), user.Role == models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "login succeeded",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return &Session{
		Token:                 token,
		ExpiresAt:             expiresAt,
		UserID:                user.ID,
		Role:                  user.Role,
		PasswordResetRequired: user.PasswordResetRequired,
	}, nil
}

// pickAccount prefers an account at the hinted ERF, then the first active
// account, then the newest match.
func (s *Service) pickAccount(ctx context.Context, matches []*models.User, erfHint string) *models.User {
	if erfHint != "" {
		for _, u := range matches {
			if s.userAtErf(ctx, u.ID, erfHint) {
				return u
			}
		}
	}
	for _, u := range matches {
		if u.Status == models.UserActive {
			return u
		}
	}
	return matches[0]
}

func (s *Service) userAtErf(ctx context.Context, userID uuid.UUID, erf string) bool {
	if r, err := s.store.FindResidentByUserID(ctx, userID); err == nil && r.ErfNumber == erf {
		return true
	}
	if o, err := s.store.FindOwnerByUserID(ctx, userID); err == nil && o.ErfNumber == erf {
		return true
	}
	return false
}

// ChangePassword verifies the current password and stores a new hash,
// clearing the reset-required flag set on migration-created accounts.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := secrets.Verify(current, user.PasswordHash); err != nil {
		return err
	}
	hash, err := secrets.Hash(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordResetRequired = false
	user.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update password")
	}
	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID.String()))
	return nil
}
