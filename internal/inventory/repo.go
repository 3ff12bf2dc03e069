package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// Repository holds the persistence operations behind the ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	CompareAndSwapStock(ctx context.Context, itemID uuid.UUID, version int64, stockCount, heldQty int) (bool, error)
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	MarkCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkReleased(ctx context.Context, id uuid.UUID, at time.Time, reason enums.ReleaseReason) (bool, error)
	ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindItem loads an item including soft-deleted rows; holds taken before a
// delete still need their counters settled. Returns nil when absent.
func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CompareAndSwapStock writes both counters only if the row still carries the
// expected version.
func (r *repository) CompareAndSwapStock(ctx context.Context, itemID uuid.UUID, version int64, stockCount, heldQty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Unscoped().
		Where("id = ? AND version = ?", itemID, version).
		Updates(map[string]any{
			"stock_count": stockCount,
			"held_qty":    heldQty,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) MarkCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND state = ?", id, enums.ReservationStateHeld).
		Updates(map[string]any{
			"state":        enums.ReservationStateCommitted,
			"committed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkReleased(ctx context.Context, id uuid.UUID, at time.Time, reason enums.ReleaseReason) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND state = ?", id, enums.ReservationStateHeld).
		Updates(map[string]any{
			"state":          enums.ReservationStateReleased,
			"released_at":    at,
			"release_reason": string(reason),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var rows []models.Reservation
	q := r.db.WithContext(ctx).
		Where("state = ? AND expires_at <= ?", enums.ReservationStateHeld, now).
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

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
