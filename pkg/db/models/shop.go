package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop is a coffee shop storefront with its connected merchant account.
type Shop struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID           uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Name              string    `gorm:"column:name;not null"`
	Address           string    `gorm:"column:address;not null"`
	IsOpen            bool      `gorm:"column:is_open;not null"`
	MerchantAccountID *string   `gorm:"column:merchant_account_id;uniqueIndex"`
	ChargesEnabled    bool      `gorm:"column:charges_enabled;not null"`
	PayoutsEnabled    bool      `gorm:"column:payouts_enabled;not null"`
	DetailsSubmitted  bool      `gorm:"column:details_submitted;not null"`
	TaxRateBps        *int      `gorm:"column:tax_rate_bps"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// MerchantAccount returns the connected account id or "".
func (s Shop) MerchantAccount() string {
	if s.MerchantAccountID == nil {
		return ""
	}
	return strings.TrimSpace(*s.MerchantAccountID)
}

// IsPayable reports whether orders may be created against the shop.
func (s Shop) IsPayable() bool {
	return s.MerchantAccount() != "" && s.ChargesEnabled
}
