package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// Item is a menu entry sold by a shop.
//
// StockCount is the on-hand quantity for tracked items; committed holds have
// already been subtracted from it. HeldQty is the sum of open tracked holds.
// Version increments on every stock write and backs the conditional updates.
type Item struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ShopID      uuid.UUID             `gorm:"column:shop_id;type:uuid;not null;index"`
	Name        string                `gorm:"column:name;not null"`
	Description string                `gorm:"column:description"`
	PriceCents  int64                 `gorm:"column:price_cents;not null"`
	StockPolicy enums.StockPolicyKind `gorm:"column:stock_policy;type:text;not null"`
	StockCount  int                   `gorm:"column:stock_count;not null"`
	HeldQty     int                   `gorm:"column:held_qty;not null"`
	Version     int64                 `gorm:"column:version;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt        `gorm:"column:deleted_at;index"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Policy returns the item's stock policy as a tagged value.
func (i Item) Policy() enums.StockPolicy {
	return enums.StockPolicy{Kind: i.StockPolicy, Count: i.StockCount}
}

// SetPolicy stores p on the item columns.
func (i *Item) SetPolicy(p enums.StockPolicy) {
	i.StockPolicy = p.Kind
	if p.IsTracked() {
		i.StockCount = p.Count
		return
	}
	i.StockCount = 0
}

// Available is the quantity that can still be reserved. Only meaningful for
// tracked items.
func (i Item) Available() int {
	available := i.StockCount - i.HeldQty
	if available < 0 {
		return 0
	}
	return available
}
