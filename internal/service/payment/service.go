package payment

import (
	"context"
	"errors"
	"log/slog"
)

var errMissingProvider = errors.New("payment provider not configured")

// IntentCreator is the external payment provider boundary.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (string, error)
}

// Service computes charge amounts and delegates intent creation to the
// provider.
type Service struct {
	provider IntentCreator
	currency string
	logger   *slog.Logger
}

// New constructs a Service. Currency is fixed per process.
func New(provider IntentCreator, currency string, logger *slog.Logger) Service {
	if currency == "" {
		currency = "usd"
	}
	return Service{provider: provider, currency: currency, logger: logger}
}

// CreateIntent charges price times quantity. The product is treated as
// already being in the provider's minor currency unit; no conversion or
// rounding policy is applied. Provider errors propagate verbatim.
func (s Service) CreateIntent(ctx context.Context, price, quantity float64) (string, error) {
	if s.provider == nil {
		return "", errMissingProvider
	}
	amount := int64(price * quantity)
	secret, err := s.provider.CreateIntent(ctx, amount, s.currency, []string{"card"})
	if err != nil {
		return "", err
	}
	s.logger.Info("payment intent created", "amount", amount, "currency", s.currency)
	return secret, nil
}
