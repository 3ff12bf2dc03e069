package items

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// Repository persists menu items.
type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListByShop(ctx context.Context, shopID uuid.UUID, includeHidden bool) ([]models.Item, error)
	UpdateVersioned(ctx context.Context, id uuid.UUID, version int64, fields map[string]any) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID returns nil when the item is absent or soft-deleted.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID, includeHidden bool) ([]models.Item, error) {
	query := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if !includeHidden {
		query = query.Where("stock_policy <> ?", enums.StockPolicyHidden)
	}
	var rows []models.Item
	err := query.Order("name ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// UpdateVersioned applies fields only if the row still has the expected
// version, bumping it on success.
func (r *repository) UpdateVersioned(ctx context.Context, id uuid.UUID, version int64, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Item{}).Error
}
