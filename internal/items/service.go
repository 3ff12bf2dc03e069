package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

const maxUpdateAttempts = 5

type ownerChecker interface {
	EnsureOwner(ctx context.Context, shopID, userID uuid.UUID) (*models.Shop, error)
}

// Service exposes menu management for shop owners and the buyer listing.
type Service interface {
	Create(ctx context.Context, ownerID, shopID uuid.UUID, input CreateItemInput) (*ItemDTO, error)
	Update(ctx context.Context, ownerID, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	Delete(ctx context.Context, ownerID, itemID uuid.UUID) error
	ListForBuyer(ctx context.Context, shopID uuid.UUID) ([]ItemDTO, error)
	ListForOwner(ctx context.Context, ownerID, shopID uuid.UUID) ([]ItemDTO, error)
}

type service struct {
	repo   Repository
	owners ownerChecker
	logg   *logger.Logger
}

func NewService(repo Repository, owners ownerChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if owners == nil {
		return nil, fmt.Errorf("owner checker required")
	}
	return &service{repo: repo, owners: owners, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, ownerID, shopID uuid.UUID, input CreateItemInput) (*ItemDTO, error) {
	if _, err := s.owners.EnsureOwner(ctx, shopID, ownerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	price, err := ParsePriceCents(input.Price)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if err := input.StockPolicy.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	item := models.Item{
		ShopID:      shopID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		PriceCents:  price,
	}
	item.SetPolicy(input.StockPolicy)
	if err := s.repo.Create(ctx, &item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create item")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithShopID(ctx, shopID.String()), map[string]any{
			"item_id":      item.ID.String(),
			"stock_policy": input.StockPolicy.String(),
		})
		s.logg.Info(logCtx, "item created")
	}
	dto := toDTO(item)
	return &dto, nil
}

// Update edits an item. A tracked count below the quantity currently held
// is rejected; stock writes race the ledger through the item version.
func (s *service) Update(ctx context.Context, ownerID, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		price, err := ParsePriceCents(*input.Price)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		fields["price_cents"] = price
	}
	if input.StockPolicy != nil {
		if err := input.StockPolicy.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
	}

	for attempt := 1; ; attempt++ {
		item, err := s.loadOwned(ctx, ownerID, itemID)
		if err != nil {
			return nil, err
		}
		if input.StockPolicy != nil {
			policy := *input.StockPolicy
			if policy.IsTracked() && policy.Count < item.HeldQty {
				return nil, pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("stock for %q cannot drop below %d units currently held", item.Name, item.HeldQty))
			}
			fields["stock_policy"] = policy.Kind
			if policy.IsTracked() {
				fields["stock_count"] = policy.Count
			} else {
				fields["stock_count"] = 0
			}
		}
		if len(fields) == 0 {
			dto := toDTO(*item)
			return &dto, nil
		}

		ok, err := s.repo.UpdateVersioned(ctx, item.ID, item.Version, fields)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update item")
		}
		if ok {
			break
		}
		if attempt >= maxUpdateAttempts {
			return nil, pkgerrors.New(pkgerrors.CodeContention, fmt.Sprintf("item %s is busy, retry", item.ID))
		}
	}

	updated, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload item")
	}
	if updated == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	dto := toDTO(*updated)
	return &dto, nil
}

// Delete soft-deletes an item. Open holds keep settling against the row.
func (s *service) Delete(ctx context.Context, ownerID, itemID uuid.UUID) error {
	item, err := s.loadOwned(ctx, ownerID, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, item.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete item")
	}
	return nil
}

func (s *service) ListForBuyer(ctx context.Context, shopID uuid.UUID) ([]ItemDTO, error) {
	return s.list(ctx, shopID, false)
}

func (s *service) ListForOwner(ctx context.Context, ownerID, shopID uuid.UUID) ([]ItemDTO, error) {
	if _, err := s.owners.EnsureOwner(ctx, shopID, ownerID); err != nil {
		return nil, err
	}
	return s.list(ctx, shopID, true)
}

func (s *service) list(ctx context.Context, shopID uuid.UUID, includeHidden bool) ([]ItemDTO, error) {
	rows, err := s.repo.ListByShop(ctx, shopID, includeHidden)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *service) loadOwned(ctx context.Context, ownerID, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if _, err := s.owners.EnsureOwner(ctx, item.ShopID, ownerID); err != nil {
		return nil, err
	}
	return item, nil
}
