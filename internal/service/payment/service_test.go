package payment

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"
)

type stubProvider struct {
	amount   int64
	currency string
	methods  []string
	err      error
}

func (s *stubProvider) CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (string, error) {
	s.amount = amount
	s.currency = currency
	s.methods = methods
	if s.err != nil {
		return "", s.err
	}
	return "cs_test_abc", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateIntent(t *testing.T) {
	provider := &stubProvider{}
	svc := New(provider, "usd", discardLogger())

	secret, err := svc.CreateIntent(context.Background(), 10, 3)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if secret != "cs_test_abc" {
		t.Fatalf("secret = %q", secret)
	}
	if provider.amount != 30 {
		t.Fatalf("amount = %d, want 30", provider.amount)
	}
	if provider.currency != "usd" {
		t.Fatalf("currency = %q", provider.currency)
	}
	if len(provider.methods) != 1 || provider.methods[0] != "card" {
		t.Fatalf("methods = %v, want [card]", provider.methods)
	}
}

func TestCreateIntentTruncatesFraction(t *testing.T) {
	provider := &stubProvider{}
	svc := New(provider, "usd", discardLogger())

	if _, err := svc.CreateIntent(context.Background(), 9.99, 2); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	// 19.98 truncates toward zero, no rounding policy
	if provider.amount != 19 {
		t.Fatalf("amount = %d, want 19", provider.amount)
	}
}

func TestCreateIntentDefaultsCurrency(t *testing.T) {
	provider := &stubProvider{}
	svc := New(provider, "", discardLogger())

	if _, err := svc.CreateIntent(context.Background(), 1, 1); err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if provider.currency != "usd" {
		t.Fatalf("currency = %q, want usd", provider.currency)
	}
}

func TestCreateIntentProviderErrors(t *testing.T) {
	providerErr := errors.New("stripe unavailable")
	provider := &stubProvider{err: providerErr}
	svc := New(provider, "usd", discardLogger())

	if _, err := svc.CreateIntent(context.Background(), 10, 1); !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
}

func TestCreateIntentMissingProvider(t *testing.T) {
	svc := New(nil, "usd", discardLogger())

	if _, err := svc.CreateIntent(context.Background(), 10, 1); !errors.Is(err, errMissingProvider) {
		t.Fatalf("expected missing provider error, got %v", err)
	}
}
