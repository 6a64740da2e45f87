package stripe

import (
	"context"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Provider creates payment intents against the Stripe API. Provider errors
// are returned verbatim; the caller owns translation.
type Provider struct {
	api *client.API
}

// New constructs a Provider with the given secret key.
func New(secretKey string) *Provider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Provider{api: api}
}

// CreateIntent requests a payment intent and returns its client secret.
func (p *Provider) CreateIntent(ctx context.Context, amount int64, currency string, methods []string) (string, error) {
	params := &stripelib.PaymentIntentParams{
		Amount:             stripelib.Int64(amount),
		Currency:           stripelib.String(currency),
		PaymentMethodTypes: stripelib.StringSlice(methods),
	}
	params.Context = ctx
	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", err
	}
	return intent.ClientSecret, nil
}
