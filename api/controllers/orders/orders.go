package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/api/middleware"
	"github.com/angelmondragon/cafequeue-backend/api/responses"
	"github.com/angelmondragon/cafequeue-backend/api/validators"
	"github.com/angelmondragon/cafequeue-backend/internal/fulfillment"
	internalorders "github.com/angelmondragon/cafequeue-backend/internal/orders"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/pagination"
)

// Notifier is the fulfillment surface exposed over HTTP.
type Notifier interface {
	Subscribe(ctx context.Context, shopID uuid.UUID) (<-chan fulfillment.OrderSnapshot, error)
	RequestTransition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actorID uuid.UUID) (*fulfillment.OrderSnapshot, error)
	AdminCancel(ctx context.Context, orderID, adminID uuid.UUID, reason string) (*fulfillment.OrderSnapshot, error)
	CustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error)
	ShopOrders(ctx context.Context, shopID, actorID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error)
	EnsureOwner(ctx context.Context, shopID, actorID uuid.UUID) error
}

// CustomerHistory pages the caller's placed orders, newest first.
func CustomerHistory(svc Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, filters, err := listQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.CustomerOrders(r.Context(), user.UserID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ShopHistory pages a shop's placed orders for its owner.
func ShopHistory(svc Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, filters, err := listQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ShopOrders(r.Context(), shopID, user.UserID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Stream writes the shop's live order snapshots as NDJSON until the client
// disconnects.
func Stream(svc Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shopID, err := validators.ParseUUIDParam(r, "shopId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.EnsureOwner(r.Context(), shopID, user.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		snapshots, err := svc.Subscribe(ctx, shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := responses.NewNDJSONWriter(w)
		for snap := range snapshots {
			if err := out.Write(snap); err != nil {
				if logg != nil {
					logg.Warn(logg.WithShopID(ctx, shopID.String()), "order stream client gone: "+err.Error())
				}
				return
			}
		}
	}
}

type transitionRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// Transition moves an order on behalf of its shop owner.
func Transition(svc Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status "+string(payload.Status)))
			return
		}

		snap, err := svc.RequestTransition(r.Context(), orderID, payload.Status, user.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

type adminCancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=280"`
}

// AdminCancel cancels any placed, not yet picked up order.
func AdminCancel(svc Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !user.IsAdmin() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adminCancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.AdminCancel(r.Context(), orderID, user.UserID, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func listQuery(r *http.Request) (pagination.Params, internalorders.ListFilters, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, internalorders.ListFilters{}, err
	}
	params := pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	var filters internalorders.ListFilters
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return pagination.Params{}, internalorders.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	return params, filters, nil
}
