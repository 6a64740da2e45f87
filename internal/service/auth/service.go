package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"toolmart/internal/config"
	jwtpkg "toolmart/internal/jwt"
	"toolmart/internal/repository"
)

// ErrNotAdmin is returned when the requesting account is missing or does not
// carry the admin role.
var ErrNotAdmin = errors.New("admin role required")

// Service handles credential verification and the admin capability gate.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Authorize validates a bearer token and returns its identity claims. No
// user record is consulted here; possession of a valid credential is enough
// for verified-only routes.
func (s Service) Authorize(ctx context.Context, token string) (*jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errors.New("token required")
	}
	return jwtpkg.Parse(trimmed, s.cfg.AccessTokenSecret)
}

// RequireAdmin loads the account for the claim's email and checks its role.
// The stored role field is the only authorization source of truth.
func (s Service) RequireAdmin(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAdmin
		}
		return err
	}
	if !user.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

// IssueToken signs a fresh credential for email. Expiry is fixed relative to
// issuance; the signing secret never rotates at runtime.
func (s Service) IssueToken(email string) (string, error) {
	return jwtpkg.GenerateToken(email, s.cfg.AccessTokenSecret, s.cfg.AccessTokenTTL)
}
