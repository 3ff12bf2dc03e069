package shops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
)

// ErrShopNotFound is returned by repository lookups that find nothing.
var ErrShopNotFound = errors.New("shop not found")

// Repository handles shop persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to shop operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new shop row.
func (r *Repository) Create(ctx context.Context, shop *models.Shop) error {
	if shop == nil {
		return fmt.Errorf("shop is required")
	}
	return r.db.WithContext(ctx).Create(shop).Error
}

// FindByID loads a shop by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// FindByMerchantAccountWithTx loads the shop connected to a processor account.
func (r *Repository) FindByMerchantAccountWithTx(tx *gorm.DB, accountID string) (*models.Shop, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var shop models.Shop
	err := tx.Where("merchant_account_id = ?", accountID).First(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// UpdateCapabilitiesWithTx writes the merchant capability flags.
func (r *Repository) UpdateCapabilitiesWithTx(tx *gorm.DB, shopID uuid.UUID, charges, payouts, details bool) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Shop{}).
		Where("id = ?", shopID).
		Updates(map[string]any{
			"charges_enabled":   charges,
			"payouts_enabled":   payouts,
			"details_submitted": details,
		}).Error
}
