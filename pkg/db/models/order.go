package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// Order is a customer's pickup order at one shop. Rows start in
// pending_payment and only become visible once PlacedAt is set, which happens
// together with the payment reference.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ShopID              uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID          uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Status              enums.OrderStatus `gorm:"column:status;type:text;not null;index"`
	PickupAt            time.Time         `gorm:"column:pickup_at;not null"`
	Currency            enums.Currency    `gorm:"column:currency;type:text;not null"`
	SubtotalCents       int64             `gorm:"column:subtotal_cents;not null"`
	TaxRateBps          int               `gorm:"column:tax_rate_bps;not null"`
	TaxCents            int64             `gorm:"column:tax_cents;not null"`
	TotalCents          int64             `gorm:"column:total_cents;not null"`
	ApplicationFeeCents int64             `gorm:"column:application_fee_cents;not null"`
	PaymentHandleID     *string           `gorm:"column:payment_handle_id;uniqueIndex"`
	PaymentRef          *string           `gorm:"column:payment_ref"`
	ExpiresAt           time.Time         `gorm:"column:expires_at;not null;index"`
	PlacedAt            *time.Time        `gorm:"column:placed_at;index"`
	CancelledAt         *time.Time        `gorm:"column:cancelled_at"`
	CancelReason        *string           `gorm:"column:cancel_reason"`
	CompletedAt         *time.Time        `gorm:"column:completed_at"`
	Lines               []OrderLine       `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsVisible reports whether the order has been placed and may be shown to
// customers and shop owners.
func (o Order) IsVisible() bool {
	return o.PlacedAt != nil
}

// OrderLine snapshots an item's name and price at checkout time.
type OrderLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	Position       int       `gorm:"column:position;not null"`
	ItemID         uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	ReservationID  uuid.UUID `gorm:"column:reservation_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
