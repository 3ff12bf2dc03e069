package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cafequeue-backend/pkg/config"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	appName = "cafequeue-backend"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client holds the process-wide Stripe credentials. The payment intent and
// webhook packages of stripe-go read stripe.Key, so NewClient must run
// before any processor call.
type Client struct {
	environment   string
	signingSecret string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	if env != testEnv && env != liveEnv {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if keyEnv(apiKey) != env {
		return nil, fmt.Errorf("stripe environment %q requires a %s secret key (sk_%s/rk_%s)", env, env, env, env)
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	stripe.Key = apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: appName})

	logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")

	return &Client{environment: env, signingSecret: signingSecret}, nil
}

// Environment reports test or live.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) Livemode() bool {
	return c.Environment() == liveEnv
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// keyEnv reports which environment a secret or restricted key belongs to,
// or "" when the prefix is unknown.
func keyEnv(key string) string {
	for _, env := range []string{testEnv, liveEnv} {
		if strings.HasPrefix(key, "sk_"+env+"_") || strings.HasPrefix(key, "rk_"+env+"_") {
			return env
		}
	}
	return ""
}
