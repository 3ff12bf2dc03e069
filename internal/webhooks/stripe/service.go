package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cafequeue-backend/internal/checkout"
	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

type outcomeHandler interface {
	HandleAuthorizationOutcome(ctx context.Context, outcome payments.Outcome) (*checkout.Confirmation, error)
}

type accountSyncer interface {
	ApplyAccountStatus(ctx context.Context, status payments.AccountStatus) (*models.Shop, error)
}

type ServiceParams struct {
	Checkout outcomeHandler
	Shops    accountSyncer
	Guard    *IdempotencyGuard
	Logger   *logger.Logger
}

// Service turns verified Stripe events into checkout outcomes and merchant
// capability updates.
type Service struct {
	checkout outcomeHandler
	shops    accountSyncer
	guard    *IdempotencyGuard
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment coordinator required")
	}
	if params.Shops == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shop service required")
	}
	return &Service{
		checkout: params.Checkout,
		shops:    params.Shops,
		guard:    params.Guard,
		logg:     params.Logger,
	}, nil
}

// HandleEvent applies one event at most once per event id. A returned error
// means Stripe should redeliver.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.eventCtx(ctx, event)

	if s.guard != nil && event.ID != "" {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook dedupe")
		}
		if seen {
			s.debug(ctx, "duplicate stripe event skipped")
			return nil
		}
	}

	err := s.dispatch(ctx, event)
	if err != nil && s.guard != nil && event.ID != "" {
		if forgetErr := s.guard.Forget(ctx, event.ID); forgetErr != nil && s.logg != nil {
			s.logg.Error(ctx, "clear webhook dedupe mark", forgetErr)
		}
	}
	return err
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypePaymentIntentAmountCapturableUpdated,
		stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.applyIntent(ctx, event.Type, &intent)
	case stripe.EventTypeAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account event")
		}
		if acct.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "account id missing")
		}
		_, err := s.shops.ApplyAccountStatus(ctx, *payments.AccountStatusFromStripe(&acct))
		return err
	default:
		return nil
	}
}

func (s *Service) applyIntent(ctx context.Context, eventType stripe.EventType, intent *stripe.PaymentIntent) error {
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	outcome := *payments.OutcomeFromIntent(intent)
	if eventType == stripe.EventTypePaymentIntentPaymentFailed && outcome.Status != payments.StatusDeclined {
		outcome.Status = payments.StatusDeclined
		if outcome.FailureReason == "" {
			outcome.FailureReason = "payment failed"
		}
	}

	_, err := s.checkout.HandleAuthorizationOutcome(ctx, outcome)
	switch {
	case err == nil:
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodePaymentFailed),
		pkgerrors.IsCode(err, pkgerrors.CodeCheckoutExpired):
		// the outcome was applied; the error only describes it
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.debug(ctx, "no checkout for payment intent")
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		s.debug(ctx, "payment outcome arrived after order settled")
		return nil
	default:
		return err
	}
}

func (s *Service) eventCtx(ctx context.Context, event *stripe.Event) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})
}

func (s *Service) debug(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Debug(ctx, msg)
	}
}
