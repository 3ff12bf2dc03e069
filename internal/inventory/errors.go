package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrItemUnavailable     = errors.New("item unavailable")
	ErrContention          = errors.New("stock contention")
	ErrNotFound            = errors.New("reservation not found")
	ErrReservationReleased = errors.New("reservation already released")
)

// StockShortage is attached to InsufficientStock errors.
type StockShortage struct {
	ItemID    uuid.UUID `json:"itemId"`
	ItemName  string    `json:"itemName,omitempty"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func insufficientStock(itemID uuid.UUID, name string, requested, available int) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeInsufficientStock,
		ErrInsufficientStock,
		fmt.Sprintf("item %q: requested %d, available %d", displayName(itemID, name), requested, available),
	).WithDetails(StockShortage{
		ItemID:    itemID,
		ItemName:  name,
		Requested: requested,
		Available: available,
	})
}

func itemUnavailable(itemID uuid.UUID, name, why string) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeItemUnavailable,
		ErrItemUnavailable,
		fmt.Sprintf("item %q is %s", displayName(itemID, name), why),
	).WithDetails(map[string]any{"itemId": itemID})
}

func contention(itemID uuid.UUID, op string, attempts int) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeContention,
		ErrContention,
		fmt.Sprintf("%s on item %s lost %d consecutive races", op, itemID, attempts),
	)
}

func reservationNotFound(id uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNotFound, fmt.Sprintf("reservation %s not found", id))
}

// ShortageFrom extracts the shortage details from an InsufficientStock error.
func ShortageFrom(err error) (StockShortage, bool) {
	if !errors.Is(err, ErrInsufficientStock) {
		return StockShortage{}, false
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return StockShortage{}, false
	}
	shortage, ok := typed.Details().(StockShortage)
	return shortage, ok
}

func displayName(id uuid.UUID, name string) string {
	if name != "" {
		return name
	}
	return id.String()
}
