package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/cafequeue-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

const (
	metadataOrderID = "order_id"
	metadataShopID  = "shop_id"
)

// stripeAPI is the subset of stripe-go calls the adapter needs.
type stripeAPI interface {
	NewIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	CaptureIntent(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	CancelIntent(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
	GetAccount(id string, params *stripe.AccountParams) (*stripe.Account, error)
}

type packageAPI struct{}

func (packageAPI) NewIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (packageAPI) GetIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

func (packageAPI) CaptureIntent(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Capture(id, params)
}

func (packageAPI) CancelIntent(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Cancel(id, params)
}

func (packageAPI) GetAccount(id string, params *stripe.AccountParams) (*stripe.Account, error) {
	return account.GetByID(id, params)
}

// StripeProcessor authorizes destination charges on Stripe. Every call goes
// through a circuit breaker so an unhealthy processor fails fast.
type StripeProcessor struct {
	api     stripeAPI
	breaker *gobreaker.CircuitBreaker
	logg    *logger.Logger
}

var (
	_ Processor     = (*StripeProcessor)(nil)
	_ AccountLookup = (*StripeProcessor)(nil)
)

// NewStripeProcessor builds the adapter. The stripe package key must already
// be set (pkg/stripe.NewClient does that).
func NewStripeProcessor(cfg config.StripeConfig, logg *logger.Logger) *StripeProcessor {
	return newStripeProcessor(packageAPI{}, cfg, logg)
}

func newStripeProcessor(api stripeAPI, cfg config.StripeConfig, logg *logger.Logger) *StripeProcessor {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "payment processor breaker state changed")
		},
	}
	return &StripeProcessor{
		api:     api,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logg:    logg,
	}
}

func (p *StripeProcessor) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Handle, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization amount must be positive")
	}
	if strings.TrimSpace(req.DestinationAccount) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination account is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(req.AmountCents),
		Currency:             stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		ApplicationFeeAmount: stripe.Int64(req.ApplicationFeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.DestinationAccount),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, req.OrderID.String())
	params.AddMetadata(metadataShopID, req.ShopID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := execute(p.breaker, func() (*stripe.PaymentIntent, error) {
		return p.api.NewIntent(params)
	})
	if err != nil {
		return nil, mapStripeError(err, "create payment intent")
	}
	return &Handle{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (p *StripeProcessor) ConfirmAuthorization(ctx context.Context, handleID string) (*Outcome, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	intent, err := execute(p.breaker, func() (*stripe.PaymentIntent, error) {
		return p.api.GetIntent(handleID, params)
	})
	if err != nil {
		return nil, mapStripeError(err, "fetch payment intent")
	}
	return OutcomeFromIntent(intent), nil
}

func (p *StripeProcessor) Capture(ctx context.Context, handleID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + handleID)

	_, err := execute(p.breaker, func() (*stripe.PaymentIntent, error) {
		return p.api.CaptureIntent(handleID, params)
	})
	if err != nil {
		return mapStripeError(err, "capture payment intent")
	}
	return nil
}

func (p *StripeProcessor) Void(ctx context.Context, handleID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey("void-" + handleID)

	_, err := execute(p.breaker, func() (*stripe.PaymentIntent, error) {
		return p.api.CancelIntent(handleID, params)
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
			// already canceled or captured
			return nil
		}
		return mapStripeError(err, "void payment intent")
	}
	return nil
}

func (p *StripeProcessor) Account(ctx context.Context, accountID string) (*AccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := execute(p.breaker, func() (*stripe.Account, error) {
		return p.api.GetAccount(accountID, params)
	})
	if err != nil {
		return nil, mapStripeError(err, "fetch merchant account")
	}
	return AccountStatusFromStripe(acct), nil
}

// OutcomeFromIntent maps a PaymentIntent status onto the authorization outcome.
func OutcomeFromIntent(intent *stripe.PaymentIntent) *Outcome {
	if intent == nil {
		return &Outcome{Status: StatusPending}
	}
	out := &Outcome{HandleID: intent.ID, Status: StatusPending}
	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		out.Status = StatusAuthorized
		out.PaymentRef = intent.ID
		if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
			out.PaymentRef = intent.LatestCharge.ID
		}
	case stripe.PaymentIntentStatusCanceled:
		out.Status = StatusDeclined
		out.FailureReason = "payment canceled"
		if intent.CancellationReason != "" {
			out.FailureReason = string(intent.CancellationReason)
		}
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// a failed attempt returns the intent to requires_payment_method
		if intent.LastPaymentError != nil {
			out.Status = StatusDeclined
			out.FailureReason = intent.LastPaymentError.Msg
		}
	}
	return out
}

// AccountStatusFromStripe copies the capability flags off a Stripe account.
func AccountStatusFromStripe(acct *stripe.Account) *AccountStatus {
	if acct == nil {
		return &AccountStatus{}
	}
	return &AccountStatus{
		AccountID:        acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
}

// declined carries a card error through the breaker without counting it as
// a processor failure.
type declined struct{ err error }

func execute[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := breaker.Execute(func() (interface{}, error) {
		value, err := fn()
		if err != nil && isCardError(err) {
			return declined{err: err}, nil
		}
		return value, err
	})
	if err != nil {
		return zero, err
	}
	if d, ok := result.(declined); ok {
		return zero, d.err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected processor result %T", result)
	}
	return typed, nil
}

func isCardError(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard
}

func mapStripeError(err error, stage string) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, stage+": payment processor unavailable")
	case isCardError(err):
		return pkgerrors.Wrap(pkgerrors.CodePaymentFailed, fmt.Errorf("%w: %v", ErrDeclined, err), stage+": card declined")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, stage)
	}
}
