package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// Reservation is a time-bounded hold against an item's stock.
// Tracked records whether the hold counted against the item's HeldQty when it
// was created, so later policy edits cannot skew the counters on release.
type Reservation struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ItemID        uuid.UUID              `gorm:"column:item_id;type:uuid;not null;index"`
	OrderID       uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	Quantity      int                    `gorm:"column:quantity;not null"`
	Tracked       bool                   `gorm:"column:tracked;not null"`
	State         enums.ReservationState `gorm:"column:state;type:text;not null;index"`
	ExpiresAt     time.Time              `gorm:"column:expires_at;not null;index"`
	CommittedAt   *time.Time             `gorm:"column:committed_at"`
	ReleasedAt    *time.Time             `gorm:"column:released_at"`
	ReleaseReason *string                `gorm:"column:release_reason"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
