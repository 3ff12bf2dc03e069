package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// Repository persists orders and their line snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentHandle(ctx context.Context, handleID string) (*models.Order, error)
	SetPaymentHandle(ctx context.Context, id uuid.UUID, handleID string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, q listQuery) ([]models.Order, error)
	ListByShop(ctx context.Context, shopID uuid.UUID, q listQuery) ([]models.Order, error)
	ListActiveByShop(ctx context.Context, shopID uuid.UUID) ([]models.Order, error)
	ListUpdatedSince(ctx context.Context, shopID uuid.UUID, since time.Time) ([]models.Order, error)
	ListExpiredPendingPayment(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its lines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

func (r *repository) FindByPaymentHandle(ctx context.Context, handleID string) (*models.Order, error) {
	return r.first(ctx, r.db.Where("payment_handle_id = ?", handleID))
}

func (r *repository) first(ctx context.Context, scoped *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := scoped.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SetPaymentHandle(ctx context.Context, id uuid.UUID, handleID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_handle_id", handleID).Error
}

// UpdateStatus writes the new status only if the row still has the expected
// one. It reports whether the row changed.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, q listQuery) ([]models.Order, error) {
	return r.history(ctx, r.db.Where("customer_id = ?", customerID), q)
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID, q listQuery) ([]models.Order, error) {
	return r.history(ctx, r.db.Where("shop_id = ?", shopID), q)
}

// history pages visible orders newest first.
func (r *repository) history(ctx context.Context, scoped *gorm.DB, q listQuery) ([]models.Order, error) {
	query := scoped.WithContext(ctx).
		Model(&models.Order{}).
		Where("placed_at IS NOT NULL")
	if q.status != nil {
		query = query.Where("status = ?", *q.status)
	}
	if q.cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID)
	}
	query = query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("id DESC")
	if q.limit > 0 {
		query = query.Limit(q.limit)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveByShop returns visible orders still moving through fulfillment,
// oldest first.
func (r *repository) ListActiveByShop(ctx context.Context, shopID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("shop_id = ? AND placed_at IS NOT NULL", shopID).
		Where("status NOT IN ?", []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled}).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUpdatedSince returns visible orders of a shop touched at or after since.
func (r *repository) ListUpdatedSince(ctx context.Context, shopID uuid.UUID, since time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("shop_id = ? AND placed_at IS NOT NULL AND updated_at >= ?", shopID, since).
		Order("updated_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListExpiredPendingPayment(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.OrderStatusPendingPayment, now).
		Order("expires_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
