package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"toolmart/internal/config"
	"toolmart/internal/domain"
	jwtpkg "toolmart/internal/jwt"
	"toolmart/internal/repository"
)

type stubUserRepo struct {
	users map[string]*domain.User
	err   error
}

func (s *stubUserRepo) UpsertUser(ctx context.Context, email string, fields map[string]any) (domain.WriteResult, error) {
	return domain.WriteResult{}, nil
}

func (s *stubUserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (s *stubUserRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func (s *stubUserRepo) SetUserRole(ctx context.Context, email, role string) (domain.WriteResult, error) {
	return domain.WriteResult{}, nil
}

func newTestService(repo *stubUserRepo) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{AccessTokenSecret: "auth-test-secret", AccessTokenTTL: time.Hour}
	return New(repo, logger, cfg)
}

func TestAuthorize(t *testing.T) {
	svc := newTestService(&stubUserRepo{users: map[string]*domain.User{}})

	token, err := svc.IssueToken("alice@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := svc.Authorize(context.Background(), token)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("claims email = %q", claims.Email)
	}

	if _, err := svc.Authorize(context.Background(), "garbage"); err == nil {
		t.Fatal("expected error for garbage token")
	}
	if _, err := svc.Authorize(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token")
	}

	expired, err := jwtpkg.GenerateToken("alice@example.com", "auth-test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	if _, err := svc.Authorize(context.Background(), expired); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestRequireAdmin(t *testing.T) {
	repo := &stubUserRepo{users: map[string]*domain.User{
		"admin@example.com":  {Email: "admin@example.com", Role: domain.RoleAdmin},
		"normal@example.com": {Email: "normal@example.com", Role: domain.RoleDefault},
	}}
	svc := newTestService(repo)

	if err := svc.RequireAdmin(context.Background(), "admin@example.com"); err != nil {
		t.Fatalf("admin account rejected: %v", err)
	}
	if err := svc.RequireAdmin(context.Background(), "normal@example.com"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for default role, got %v", err)
	}
	// a missing account is treated as not admin, not as a lookup failure
	if err := svc.RequireAdmin(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for unknown account, got %v", err)
	}
}

func TestRequireAdminPropagatesRepoError(t *testing.T) {
	repoErr := errors.New("connection reset")
	svc := newTestService(&stubUserRepo{err: repoErr})

	err := svc.RequireAdmin(context.Background(), "admin@example.com")
	if !errors.Is(err, repoErr) {
		t.Fatalf("expected repo error to propagate, got %v", err)
	}
}
