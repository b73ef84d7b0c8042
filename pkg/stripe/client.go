package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// Client wraps Stripe's API client plus the webhook signing secret.
type Client struct {
	api           *stripe.Client
	signingSecret string
}

// NewClient initializes Stripe once with the configured secrets.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case signingSecret == "":
		return nil, errSecretRequired
	}
	if err := checkSecretKey(apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey
	if logg != nil {
		logg.Info(ctx, "stripe client initialized")
	}
	return &Client{
		api:           stripe.NewClient(apiKey),
		signingSecret: signingSecret,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// checkSecretKey rejects publishable keys before any API call is attempted.
func checkSecretKey(key string) error {
	for _, prefix := range []string{"sk_test", "sk_live", "rk_test", "rk_live"} {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe api key must be a secret key (sk_/rk_)")
}
