package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/cafequeue-backend/internal/checkout"
	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/pkg/auth"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

type fakeCoordinator struct {
	req          checkoutsvc.Request
	called       bool
	checkoutErr  error
	confirmation *checkoutsvc.Confirmation
	confirmErr   error
	confirmedBy  uuid.UUID
}

func (f *fakeCoordinator) Checkout(_ context.Context, req checkoutsvc.Request) (*checkoutsvc.Result, error) {
	f.called = true
	f.req = req
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &checkoutsvc.Result{
		OrderID:   uuid.New(),
		Handle:    payments.Handle{ID: "pi_1", ClientSecret: "pi_1_secret"},
		ExpiresAt: time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC),
	}, nil
}

func (f *fakeCoordinator) Confirm(_ context.Context, customerID, _ uuid.UUID) (*checkoutsvc.Confirmation, error) {
	f.confirmedBy = customerID
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return f.confirmation, nil
}

func newRequest(body string, user uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if user != uuid.Nil {
		ctx = middleware.WithIdentity(ctx, auth.Identity{UserID: user, Role: enums.UserRoleCustomer})
	}
	return req.WithContext(ctx)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestStartCreatesCheckout(t *testing.T) {
	svc := &fakeCoordinator{}
	user := uuid.New()
	shopID := uuid.New()
	itemID := uuid.New()
	body := `{"shop_id":"` + shopID.String() + `","lines":[{"item_id":"` + itemID.String() + `","quantity":2}],"pickup_at":"2026-03-02T10:30:00+02:00"}`

	rec := httptest.NewRecorder()
	Start(svc, nil).ServeHTTP(rec, newRequest(body, user, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.req.CustomerID != user || svc.req.ShopID != shopID {
		t.Fatalf("unexpected request %+v", svc.req)
	}
	if len(svc.req.Lines) != 1 || svc.req.Lines[0].ItemID != itemID || svc.req.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", svc.req.Lines)
	}
	if want := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC); !svc.req.PickupAt.Equal(want) || svc.req.PickupAt.Location() != time.UTC {
		t.Fatalf("expected pickup %s in UTC, got %s", want, svc.req.PickupAt)
	}

	var env struct {
		Data struct {
			Handle struct {
				ClientSecret string `json:"clientSecret"`
			} `json:"payment_handle"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Data.Handle.ClientSecret != "pi_1_secret" {
		t.Fatalf("expected client secret in body, got %s", rec.Body.String())
	}
}

func TestStartRejectsBadBodies(t *testing.T) {
	line := `{"item_id":"` + uuid.NewString() + `","quantity":%s}`
	shop := `"shop_id":"` + uuid.NewString() + `"`
	cases := map[string]string{
		"empty":         ``,
		"no lines":      `{` + shop + `,"lines":[]}`,
		"zero quantity": `{` + shop + `,"lines":[` + strings.Replace(line, "%s", "0", 1) + `]}`,
		"over 99":       `{` + shop + `,"lines":[` + strings.Replace(line, "%s", "100", 1) + `]}`,
		"unknown field": `{` + shop + `,"lines":[` + strings.Replace(line, "%s", "1", 1) + `],"tip":5}`,
	}
	for name, body := range cases {
		svc := &fakeCoordinator{}
		rec := httptest.NewRecorder()
		Start(svc, nil).ServeHTTP(rec, newRequest(body, uuid.New(), nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", name, rec.Code, rec.Body.String())
		}
		if svc.called {
			t.Fatalf("%s: checkout should not run", name)
		}
	}
}

func TestStartRequiresIdentity(t *testing.T) {
	svc := &fakeCoordinator{}
	rec := httptest.NewRecorder()
	Start(svc, nil).ServeHTTP(rec, newRequest(`{}`, uuid.Nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestStartMapsCheckoutFailures(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 1 Scone left"), status: http.StatusConflict},
		{err: pkgerrors.New(pkgerrors.CodeItemUnavailable, "item is hidden"), status: http.StatusConflict},
		{err: pkgerrors.New(pkgerrors.CodeShopNotPayable, "shop is closed"), status: http.StatusUnprocessableEntity},
		{err: pkgerrors.New(pkgerrors.CodePaymentFailed, "card declined"), status: http.StatusPaymentRequired},
		{err: pkgerrors.New(pkgerrors.CodeDependency, "processor unavailable"), status: http.StatusServiceUnavailable},
	}
	body := `{"shop_id":"` + uuid.NewString() + `","lines":[{"item_id":"` + uuid.NewString() + `","quantity":1}]}`
	for _, tc := range cases {
		typed := pkgerrors.As(tc.err)
		rec := httptest.NewRecorder()
		Start(&fakeCoordinator{checkoutErr: tc.err}, nil).ServeHTTP(rec, newRequest(body, uuid.New(), nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", typed.Code(), tc.status, rec.Code)
		}
		if got := errorCode(t, rec); got != string(typed.Code()) {
			t.Fatalf("expected code %s, got %s", typed.Code(), got)
		}
	}
}

func TestConfirmPendingAnswersAccepted(t *testing.T) {
	user := uuid.New()
	svc := &fakeCoordinator{confirmation: &checkoutsvc.Confirmation{Status: payments.StatusPending}}
	rec := httptest.NewRecorder()
	Confirm(svc, nil).ServeHTTP(rec, newRequest("", user, map[string]string{"orderId": uuid.NewString()}))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.confirmedBy != user {
		t.Fatalf("expected confirm for %s, got %s", user, svc.confirmedBy)
	}
	if strings.Contains(rec.Body.String(), `"order"`) {
		t.Fatalf("pending confirmation should not carry an order: %s", rec.Body.String())
	}
}

func TestConfirmPlacedReturnsOrder(t *testing.T) {
	placedAt := time.Date(2026, 3, 2, 8, 1, 0, 0, time.UTC)
	ref := "ch_pi_1"
	order := &models.Order{
		ID:            uuid.New(),
		Status:        enums.OrderStatusPending,
		Currency:      enums.CurrencyUSD,
		SubtotalCents: 1000,
		TaxCents:      83,
		TotalCents:    1083,
		PaymentRef:    &ref,
		PlacedAt:      &placedAt,
	}
	svc := &fakeCoordinator{confirmation: &checkoutsvc.Confirmation{Order: order, Status: payments.StatusAuthorized}}
	rec := httptest.NewRecorder()
	Confirm(svc, nil).ServeHTTP(rec, newRequest("", uuid.New(), map[string]string{"orderId": order.ID.String()}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var env struct {
		Data struct {
			Status payments.Status `json:"status"`
			Order  struct {
				ID         uuid.UUID         `json:"id"`
				Status     enums.OrderStatus `json:"status"`
				TotalCents int64             `json:"total_cents"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Data.Status != payments.StatusAuthorized || env.Data.Order.ID != order.ID {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if env.Data.Order.Status != enums.OrderStatusPending || env.Data.Order.TotalCents != 1083 {
		t.Fatalf("unexpected order view %+v", env.Data.Order)
	}
}

func TestConfirmMapsTerminalOutcomes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: pkgerrors.Wrap(pkgerrors.CodePaymentFailed, checkoutsvc.ErrPaymentFailed, "card declined"), status: http.StatusPaymentRequired},
		{err: pkgerrors.Wrap(pkgerrors.CodeCheckoutExpired, checkoutsvc.ErrCheckoutExpired, "checkout expired"), status: http.StatusGone},
		{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), status: http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Confirm(&fakeCoordinator{confirmErr: tc.err}, nil).ServeHTTP(rec, newRequest("", uuid.New(), map[string]string{"orderId": uuid.NewString()}))
		if rec.Code != tc.status {
			t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	Confirm(&fakeCoordinator{}, nil).ServeHTTP(rec, newRequest("", uuid.New(), map[string]string{"orderId": "latte"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed order id, got %d", rec.Code)
	}
}
