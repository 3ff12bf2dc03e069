package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
)

// LineRequest is one requested item and quantity.
type LineRequest struct {
	ItemID   uuid.UUID
	Quantity int
}

// Request starts a checkout for one shop. A zero PickupAt means as soon as
// possible.
type Request struct {
	CustomerID uuid.UUID
	ShopID     uuid.UUID
	Lines      []LineRequest
	PickupAt   time.Time
}

// Result is returned once stock is held and an authorization exists. The
// customer completes payment with Handle.ClientSecret before ExpiresAt.
type Result struct {
	OrderID   uuid.UUID       `json:"order_id"`
	Handle    payments.Handle `json:"payment_handle"`
	Totals    Totals          `json:"totals"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Confirmation is the state of a checkout after an outcome was applied.
// Order is visible when Status is authorized.
type Confirmation struct {
	Order  *models.Order
	Status payments.Status
}

// Placed reports whether the order has been promoted.
func (c Confirmation) Placed() bool {
	return c.Order != nil && c.Order.IsVisible()
}
