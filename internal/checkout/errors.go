package checkout

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

var (
	ErrShopNotPayable  = errors.New("shop cannot accept payments")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrCheckoutExpired = errors.New("checkout expired")
)

// Cancel reasons recorded on provisional orders that never became visible.
const (
	CancelReasonExpired       = "checkout_expired"
	CancelReasonPaymentFailed = "payment_failed"
	CancelReasonAuthError     = "authorization_error"
)

// ShopProblem is attached to ShopNotPayable errors.
type ShopProblem struct {
	ShopID uuid.UUID `json:"shop_id"`
	Reason string    `json:"reason"`
}

// PaymentProblem is attached to PaymentFailed and CheckoutExpired errors.
type PaymentProblem struct {
	OrderID uuid.UUID `json:"order_id"`
	Stage   string    `json:"stage"`
	Reason  string    `json:"reason,omitempty"`
}

func shopNotPayable(shopID uuid.UUID, reason string) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeShopNotPayable,
		ErrShopNotPayable,
		fmt.Sprintf("shop %s cannot take orders: %s", shopID, reason),
	).WithDetails(ShopProblem{ShopID: shopID, Reason: reason})
}

func paymentFailed(orderID uuid.UUID, stage, reason string) error {
	msg := fmt.Sprintf("payment for order %s failed during %s", orderID, stage)
	if reason != "" {
		msg += ": " + reason
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentFailed, ErrPaymentFailed, msg).
		WithDetails(PaymentProblem{OrderID: orderID, Stage: stage, Reason: reason})
}

func checkoutExpired(orderID uuid.UUID, stage string) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeCheckoutExpired,
		ErrCheckoutExpired,
		fmt.Sprintf("checkout for order %s expired before %s", orderID, stage),
	).WithDetails(PaymentProblem{OrderID: orderID, Stage: stage})
}

// terminalError reports how a provisional order that was cancelled ended.
func terminalError(orderID uuid.UUID, reason *string, stage string) error {
	if reason != nil && *reason == CancelReasonExpired {
		return checkoutExpired(orderID, stage)
	}
	msg := ""
	if reason != nil {
		msg = *reason
	}
	return paymentFailed(orderID, stage, msg)
}
