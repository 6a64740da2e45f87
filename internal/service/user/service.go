package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
)

var errMissingEmail = errors.New("email is required")

// TokenIssuer signs credentials for upserted accounts.
type TokenIssuer interface {
	IssueToken(email string) (string, error)
}

// Service handles account upserts, role promotion, and listings.
type Service struct {
	users  repository.UserRepository
	tokens TokenIssuer
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) Service {
	return Service{users: users, tokens: tokens, logger: logger}
}

// Upsert merges the supplied profile fields into the account for email and
// issues a fresh credential. Repeating the call with a newer payload leaves
// one record reflecting the latest fields.
func (s Service) Upsert(ctx context.Context, email string, fields map[string]any) (domain.WriteResult, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.WriteResult{}, "", errMissingEmail
	}
	result, err := s.users.UpsertUser(ctx, email, fields)
	if err != nil {
		return domain.WriteResult{}, "", err
	}
	token, err := s.tokens.IssueToken(email)
	if err != nil {
		return domain.WriteResult{}, "", err
	}
	s.logger.Info("user upserted", "email", email)
	return result, token, nil
}

// List returns every account.
func (s Service) List(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// IsAdmin reports whether the account for email holds the admin role. An
// unknown email is simply not an admin.
func (s Service) IsAdmin(ctx context.Context, email string) (bool, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}

// Promote grants the admin role to an existing account. Unlike Upsert this
// never inserts; promoting an unknown email is a zero-effect acknowledgment.
func (s Service) Promote(ctx context.Context, email string) (domain.WriteResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.WriteResult{}, errMissingEmail
	}
	result, err := s.users.SetUserRole(ctx, email, domain.RoleAdmin)
	if err != nil {
		return domain.WriteResult{}, err
	}
	s.logger.Info("user promoted", "email", email, "matched", result.Matched)
	return result, nil
}
