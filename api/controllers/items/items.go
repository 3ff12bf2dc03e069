package items

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/api/middleware"
	"github.com/angelmondragon/cafequeue-backend/api/responses"
	"github.com/angelmondragon/cafequeue-backend/api/validators"
	itemsvc "github.com/angelmondragon/cafequeue-backend/internal/items"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

// Catalog is the menu surface the HTTP layer needs.
type Catalog interface {
	Create(ctx context.Context, ownerID, shopID uuid.UUID, input itemsvc.CreateItemInput) (*itemsvc.ItemDTO, error)
	Update(ctx context.Context, ownerID, itemID uuid.UUID, input itemsvc.UpdateItemInput) (*itemsvc.ItemDTO, error)
	Delete(ctx context.Context, ownerID, itemID uuid.UUID) error
	ListForBuyer(ctx context.Context, shopID uuid.UUID) ([]itemsvc.ItemDTO, error)
	ListForOwner(ctx context.Context, ownerID, shopID uuid.UUID) ([]itemsvc.ItemDTO, error)
}

type stockPolicyRequest struct {
	Kind  enums.StockPolicyKind `json:"kind" validate:"required,oneof=tracked unlimited hidden"`
	Count int                   `json:"count" validate:"gte=0"`
}

func (p stockPolicyRequest) policy() enums.StockPolicy {
	if p.Kind == enums.StockPolicyTracked {
		return enums.Tracked(p.Count)
	}
	return enums.StockPolicy{Kind: p.Kind}
}

type createItemRequest struct {
	Name        string             `json:"name" validate:"required,notblank,max=120"`
	Description string             `json:"description" validate:"max=1000"`
	Price       string             `json:"price" validate:"required"`
	StockPolicy stockPolicyRequest `json:"stock_policy"`
}

type updateItemRequest struct {
	Name        *string             `json:"name,omitempty" validate:"omitempty,notblank,max=120"`
	Description *string             `json:"description,omitempty" validate:"omitempty,max=1000"`
	Price       *string             `json:"price,omitempty"`
	StockPolicy *stockPolicyRequest `json:"stock_policy,omitempty"`
}

// List returns the buyer menu, or with ?all=true the owner view that
// includes hidden items.
func List(svc Catalog, logg *logger.Logger) http.HandlerFunc {
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

		all, err := validators.ParseQueryBool(r, "all", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var list []itemsvc.ItemDTO
		if all {
			list, err = svc.ListForOwner(r.Context(), user.UserID, shopID)
		} else {
			list, err = svc.ListForBuyer(r.Context(), shopID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Create adds an item to the caller's shop.
func Create(svc Catalog, logg *logger.Logger) http.HandlerFunc {
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
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), user.UserID, shopID, itemsvc.CreateItemInput{
			Name:        payload.Name,
			Description: payload.Description,
			Price:       payload.Price,
			StockPolicy: payload.StockPolicy.policy(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// Update applies a partial edit to an item.
func Update(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := itemsvc.UpdateItemInput{
			Name:        payload.Name,
			Description: payload.Description,
			Price:       payload.Price,
		}
		if payload.StockPolicy != nil {
			policy := payload.StockPolicy.policy()
			input.StockPolicy = &policy
		}
		item, err := svc.Update(r.Context(), user.UserID, itemID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Delete soft-deletes an item. Held stock keeps draining through the ledger.
func Delete(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := middleware.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), user.UserID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
