package orders

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

var (
	ErrIllegalTransition = errors.New("illegal order transition")
	ErrUnauthorized      = errors.New("actor not allowed to change order")
	ErrNotFound          = errors.New("order not found")
)

// TransitionConflict is attached to IllegalTransition errors.
type TransitionConflict struct {
	From enums.OrderStatus `json:"from"`
	To   enums.OrderStatus `json:"to"`
}

func illegalTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeStateConflict,
		ErrIllegalTransition,
		fmt.Sprintf("cannot move order from %s to %s", from, to),
	).WithDetails(TransitionConflict{From: from, To: to})
}

func unauthorizedTransition(from, to enums.OrderStatus, actor Actor) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeForbidden,
		ErrUnauthorized,
		fmt.Sprintf("%s may not move order from %s to %s", actor, from, to),
	)
}

// Unauthorized builds the error returned when an actor does not own the
// order's shop.
func Unauthorized(orderID uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeForbidden, ErrUnauthorized, fmt.Sprintf("order %s belongs to another shop", orderID))
}

func orderNotFound(id uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNotFound, fmt.Sprintf("order %s not found", id))
}
