package stripewebhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cafequeue-backend/internal/checkout"
	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

type stubCheckout struct {
	outcomes []payments.Outcome
	err      error
}

func (s *stubCheckout) HandleAuthorizationOutcome(_ context.Context, outcome payments.Outcome) (*checkout.Confirmation, error) {
	s.outcomes = append(s.outcomes, outcome)
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.Confirmation{Status: outcome.Status}, nil
}

type stubShops struct {
	statuses []payments.AccountStatus
}

func (s *stubShops) ApplyAccountStatus(_ context.Context, status payments.AccountStatus) (*models.Shop, error) {
	s.statuses = append(s.statuses, status)
	return &models.Shop{}, nil
}

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryKeys) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryKeys) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryKeys) WebhookEventKey(provider, eventID string) string {
	return "cq:webhook:" + provider + ":" + eventID
}

func newTestService(t *testing.T, co *stubCheckout, shops *stubShops) (*Service, *memoryKeys) {
	t.Helper()
	keys := &memoryKeys{keys: map[string]bool{}}
	guard, err := NewIdempotencyGuard(keys, time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	svc, err := NewService(ServiceParams{Checkout: co, Shops: shops, Guard: guard})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc, keys
}

func intentEvent(id string, typ stripe.EventType, raw string) *stripe.Event {
	return &stripe.Event{ID: id, Type: typ, Data: &stripe.EventData{Raw: []byte(raw)}}
}

func TestCapturableIntentAuthorizesCheckout(t *testing.T) {
	co := &stubCheckout{}
	svc, _ := newTestService(t, co, &stubShops{})

	event := intentEvent("evt_1", stripe.EventTypePaymentIntentAmountCapturableUpdated,
		`{"id":"pi_1","object":"payment_intent","status":"requires_capture","latest_charge":"ch_1"}`)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(co.outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(co.outcomes))
	}
	got := co.outcomes[0]
	if got.HandleID != "pi_1" || got.Status != payments.StatusAuthorized || got.PaymentRef != "ch_1" {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestDuplicateEventIsSkipped(t *testing.T) {
	co := &stubCheckout{}
	svc, _ := newTestService(t, co, &stubShops{})
	event := intentEvent("evt_dup", stripe.EventTypePaymentIntentSucceeded,
		`{"id":"pi_2","object":"payment_intent","status":"succeeded"}`)

	for i := 0; i < 2; i++ {
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("handle event %d: %v", i, err)
		}
	}
	if len(co.outcomes) != 1 {
		t.Fatalf("expected redelivery skipped, got %d outcomes", len(co.outcomes))
	}
}

func TestPaymentFailedIsDeclineAndSwallowed(t *testing.T) {
	co := &stubCheckout{err: pkgerrors.New(pkgerrors.CodePaymentFailed, "card declined")}
	svc, _ := newTestService(t, co, &stubShops{})
	event := intentEvent("evt_fail", stripe.EventTypePaymentIntentPaymentFailed,
		`{"id":"pi_3","object":"payment_intent","status":"requires_payment_method","last_payment_error":{"message":"Your card was declined."}}`)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected decline to be acknowledged, got %v", err)
	}
	got := co.outcomes[0]
	if got.Status != payments.StatusDeclined || got.FailureReason != "Your card was declined." {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestUnknownIntentIsAcknowledged(t *testing.T) {
	co := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeNotFound, "no order")}
	svc, _ := newTestService(t, co, &stubShops{})
	event := intentEvent("evt_other", stripe.EventTypePaymentIntentCanceled,
		`{"id":"pi_4","object":"payment_intent","status":"canceled"}`)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected nil for unknown intent, got %v", err)
	}
}

func TestFailedProcessingClearsDedupeMark(t *testing.T) {
	co := &stubCheckout{err: errors.New("db unavailable")}
	svc, keys := newTestService(t, co, &stubShops{})
	event := intentEvent("evt_retry", stripe.EventTypePaymentIntentSucceeded,
		`{"id":"pi_5","object":"payment_intent","status":"succeeded"}`)

	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected error so stripe redelivers")
	}
	if keys.keys["cq:webhook:stripe:evt_retry"] {
		t.Fatal("dedupe mark should be cleared after failure")
	}

	co.err = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(co.outcomes) != 2 {
		t.Fatalf("expected redelivery processed, got %d outcomes", len(co.outcomes))
	}
}

func TestAccountUpdatedSyncsShop(t *testing.T) {
	shops := &stubShops{}
	svc, _ := newTestService(t, &stubCheckout{}, shops)
	event := intentEvent("evt_acct", stripe.EventTypeAccountUpdated,
		`{"id":"acct_shop","object":"account","charges_enabled":true,"payouts_enabled":false,"details_submitted":true}`)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(shops.statuses) != 1 {
		t.Fatalf("expected one account sync, got %d", len(shops.statuses))
	}
	got := shops.statuses[0]
	if got.AccountID != "acct_shop" || !got.ChargesEnabled || got.PayoutsEnabled || !got.DetailsSubmitted {
		t.Fatalf("unexpected account status %+v", got)
	}
}

func TestIgnoredEventTypes(t *testing.T) {
	co := &stubCheckout{}
	svc, _ := newTestService(t, co, &stubShops{})
	event := intentEvent("evt_misc", stripe.EventTypeCustomerCreated, `{"id":"cus_1","object":"customer"}`)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(co.outcomes) != 0 {
		t.Fatal("unexpected checkout call")
	}
	if err := svc.HandleEvent(context.Background(), &stripe.Event{}); err == nil {
		t.Fatal("expected error for event without data")
	}
}
