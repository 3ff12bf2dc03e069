package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	"github.com/angelmondragon/cafequeue-backend/pkg/pagination"
)

// TransitionRequest asks the state machine to move an order.
type TransitionRequest struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
	ActorID uuid.UUID
	// PaymentRef is required when promoting out of pending_payment.
	PaymentRef string
	Reason     string
}

// ListFilters narrows order history queries.
type ListFilters struct {
	Status *enums.OrderStatus
}

type listQuery struct {
	status *enums.OrderStatus
	limit  int
	cursor *pagination.Cursor
}

// OrderLineView is an order line snapshot.
type OrderLineView struct {
	ItemID         uuid.UUID `json:"item_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// OrderView is the externally visible shape of an order.
type OrderView struct {
	ID            uuid.UUID         `json:"id"`
	ShopID        uuid.UUID         `json:"shop_id"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	Status        enums.OrderStatus `json:"status"`
	PickupAt      time.Time         `json:"pickup_at"`
	Currency      enums.Currency    `json:"currency"`
	SubtotalCents int64             `json:"subtotal_cents"`
	TaxCents      int64             `json:"tax_cents"`
	TotalCents    int64             `json:"total_cents"`
	PaymentRef    string            `json:"payment_ref,omitempty"`
	Lines         []OrderLineView   `json:"lines"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OrderList wraps a page of orders and the cursor for the next one.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ToView maps an order row onto its API shape.
func ToView(o models.Order) OrderView {
	view := OrderView{
		ID:            o.ID,
		ShopID:        o.ShopID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PickupAt:      o.PickupAt,
		Currency:      o.Currency,
		SubtotalCents: o.SubtotalCents,
		TaxCents:      o.TaxCents,
		TotalCents:    o.TotalCents,
		Lines:         make([]OrderLineView, 0, len(o.Lines)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.PaymentRef != nil {
		view.PaymentRef = *o.PaymentRef
	}
	for _, line := range o.Lines {
		view.Lines = append(view.Lines, OrderLineView{
			ItemID:         line.ItemID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return view
}
