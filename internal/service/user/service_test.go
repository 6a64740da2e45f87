package user

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
)

type stubUserRepo struct {
	users     map[string]*domain.User
	upsertErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (s *stubUserRepo) UpsertUser(ctx context.Context, email string, fields map[string]any) (domain.WriteResult, error) {
	if s.upsertErr != nil {
		return domain.WriteResult{}, s.upsertErr
	}
	existing, ok := s.users[email]
	if !ok {
		s.users[email] = &domain.User{Email: email, Role: domain.RoleDefault, Doc: fields}
		return domain.WriteResult{UpsertedID: email}, nil
	}
	for k, v := range fields {
		existing.Doc[k] = v
	}
	return domain.WriteResult{Matched: 1, Modified: 1}, nil
}

func (s *stubUserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (s *stubUserRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubUserRepo) SetUserRole(ctx context.Context, email, role string) (domain.WriteResult, error) {
	u, ok := s.users[email]
	if !ok {
		return domain.WriteResult{}, nil
	}
	u.Role = role
	return domain.WriteResult{Matched: 1, Modified: 1}, nil
}

type stubIssuer struct {
	token string
	err   error
}

func (s stubIssuer) IssueToken(email string) (string, error) {
	return s.token, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpsert(t *testing.T) {
	repo := newStubUserRepo()
	svc := New(repo, stubIssuer{token: "signed-token"}, discardLogger())

	result, token, err := svc.Upsert(context.Background(), "alice@example.com", map[string]any{"name": "Alice"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if token != "signed-token" {
		t.Fatalf("token = %q", token)
	}
	if result.UpsertedID != "alice@example.com" {
		t.Fatalf("expected insert ack, got %+v", result)
	}

	result, _, err = svc.Upsert(context.Background(), "alice@example.com", map[string]any{"name": "Alice B"})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("expected update ack, got %+v", result)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected one record, got %d", len(repo.users))
	}
	if repo.users["alice@example.com"].Doc["name"] != "Alice B" {
		t.Fatal("latest fields should win")
	}

	if _, _, err := svc.Upsert(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank email")
	}
}

func TestUpsertTokenFailure(t *testing.T) {
	repo := newStubUserRepo()
	issueErr := errors.New("signing failed")
	svc := New(repo, stubIssuer{err: issueErr}, discardLogger())

	if _, _, err := svc.Upsert(context.Background(), "alice@example.com", nil); !errors.Is(err, issueErr) {
		t.Fatalf("expected signing error, got %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	repo := newStubUserRepo()
	repo.users["admin@example.com"] = &domain.User{Email: "admin@example.com", Role: domain.RoleAdmin}
	svc := New(repo, stubIssuer{}, discardLogger())

	admin, err := svc.IsAdmin(context.Background(), "admin@example.com")
	if err != nil || !admin {
		t.Fatalf("IsAdmin(admin) = %v, %v", admin, err)
	}
	// an unknown account is simply not admin
	admin, err = svc.IsAdmin(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("unexpected error for unknown account: %v", err)
	}
	if admin {
		t.Fatal("unknown account must not be admin")
	}
}

func TestPromote(t *testing.T) {
	repo := newStubUserRepo()
	repo.users["alice@example.com"] = &domain.User{Email: "alice@example.com", Role: domain.RoleDefault, Doc: map[string]any{}}
	svc := New(repo, stubIssuer{}, discardLogger())

	result, err := svc.Promote(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("expected matched ack, got %+v", result)
	}
	if repo.users["alice@example.com"].Role != domain.RoleAdmin {
		t.Fatal("role not updated")
	}

	// promoting an unknown email acknowledges without inserting
	result, err = svc.Promote(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("promote unknown: %v", err)
	}
	if result.Matched != 0 {
		t.Fatalf("expected zero-effect ack, got %+v", result)
	}
	if len(repo.users) != 1 {
		t.Fatal("promotion must never insert")
	}
}
