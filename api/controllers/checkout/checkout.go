package checkout

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/api/middleware"
	"github.com/angelmondragon/cafequeue-backend/api/responses"
	"github.com/angelmondragon/cafequeue-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/cafequeue-backend/internal/checkout"
	"github.com/angelmondragon/cafequeue-backend/internal/orders"
	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

// Coordinator is the checkout surface the HTTP layer needs.
type Coordinator interface {
	Checkout(ctx context.Context, req checkoutsvc.Request) (*checkoutsvc.Result, error)
	Confirm(ctx context.Context, customerID, orderID uuid.UUID) (*checkoutsvc.Confirmation, error)
}

type lineRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1,max=99"`
}

type checkoutRequest struct {
	ShopID   uuid.UUID     `json:"shop_id" validate:"required"`
	Lines    []lineRequest `json:"lines" validate:"required,min=1,dive"`
	PickupAt *time.Time    `json:"pickup_at,omitempty"`
}

// Start holds stock for the cart and opens a payment authorization.
func Start(svc Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := checkoutsvc.Request{
			CustomerID: user.UserID,
			ShopID:     payload.ShopID,
			Lines:      make([]checkoutsvc.LineRequest, 0, len(payload.Lines)),
		}
		if payload.PickupAt != nil {
			req.PickupAt = payload.PickupAt.UTC()
		}
		for _, line := range payload.Lines {
			req.Lines = append(req.Lines, checkoutsvc.LineRequest{ItemID: line.ItemID, Quantity: line.Quantity})
		}

		result, err := svc.Checkout(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type confirmationResponse struct {
	Status payments.Status   `json:"status"`
	Order  *orders.OrderView `json:"order,omitempty"`
}

// Confirm asks the processor for the payment outcome and places the order
// once it is authorized. A still-pending payment answers 202.
func Confirm(svc Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmation, err := svc.Confirm(r.Context(), user.UserID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := confirmationResponse{Status: confirmation.Status}
		if !confirmation.Placed() {
			responses.WriteSuccessStatus(w, http.StatusAccepted, resp)
			return
		}
		view := orders.ToView(*confirmation.Order)
		resp.Order = &view
		responses.WriteSuccess(w, resp)
	}
}
