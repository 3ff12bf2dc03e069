package outbox

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted when a paid order becomes visible.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	ShopID     uuid.UUID `json:"shopId"`
	CustomerID uuid.UUID `json:"customerId"`
	TotalCents int64     `json:"totalCents"`
	Currency   string    `json:"currency"`
	PickupAt   time.Time `json:"pickupAt"`
	PaymentRef string    `json:"paymentRef"`
}

// OrderStatusChangedEvent is emitted for every applied status transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	ShopID     uuid.UUID `json:"shopId"`
	CustomerID uuid.UUID `json:"customerId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
}

// PaymentFailedEvent is emitted when a checkout ends without authorization.
type PaymentFailedEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	ShopID          uuid.UUID `json:"shopId"`
	PaymentHandleID string    `json:"paymentHandleId,omitempty"`
	Reason          string    `json:"reason"`
}

// OrderExpiredEvent is emitted when a checkout times out waiting for payment.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	ShopID    uuid.UUID `json:"shopId"`
	ExpiredAt time.Time `json:"expiredAt"`
}

// ReservationReleasedEvent is emitted for every hold returned to stock.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ItemID        uuid.UUID `json:"itemId"`
	OrderID       uuid.UUID `json:"orderId"`
	Quantity      int       `json:"quantity"`
	Reason        string    `json:"reason"`
}

// ShopPayabilityEvent is emitted when merchant capabilities change.
type ShopPayabilityEvent struct {
	ShopID           uuid.UUID `json:"shopId"`
	ChargesEnabled   bool      `json:"chargesEnabled"`
	PayoutsEnabled   bool      `json:"payoutsEnabled"`
	DetailsSubmitted bool      `json:"detailsSubmitted"`
}
