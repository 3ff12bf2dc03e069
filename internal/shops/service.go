package shops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/outbox"
)

type shopRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindByMerchantAccountWithTx(tx *gorm.DB, accountID string) (*models.Shop, error)
	UpdateCapabilitiesWithTx(tx *gorm.DB, shopID uuid.UUID, charges, payouts, details bool) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo     shopRepository
	Tx       txRunner
	Accounts payments.AccountLookup
	Outbox   outbox.Emitter
	Logger   *logger.Logger
}

// Service answers ownership and payability questions about shops and keeps
// merchant capability flags in sync with the processor.
type Service struct {
	repo     shopRepository
	tx       txRunner
	accounts payments.AccountLookup
	outbox   outbox.Emitter
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shop repo required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:     params.Repo,
		tx:       params.Tx,
		accounts: params.Accounts,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

// Get loads a shop or returns a NOT_FOUND error.
func (s *Service) Get(ctx context.Context, shopID uuid.UUID) (*models.Shop, error) {
	shop, err := s.repo.FindByID(ctx, shopID)
	if errors.Is(err, ErrShopNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("shop %s not found", shopID))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
	}
	return shop, nil
}

// IsOwner reports whether userID owns the shop.
func (s *Service) IsOwner(ctx context.Context, shopID, userID uuid.UUID) (bool, error) {
	shop, err := s.Get(ctx, shopID)
	if err != nil {
		return false, err
	}
	return shop.OwnerID == userID, nil
}

// EnsureOwner fails with FORBIDDEN unless userID owns the shop.
func (s *Service) EnsureOwner(ctx context.Context, shopID, userID uuid.UUID) (*models.Shop, error) {
	shop, err := s.Get(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop.OwnerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop belongs to another owner")
	}
	return shop, nil
}

// SyncMerchantAccount refreshes the shop's capability flags from the
// processor and returns the updated shop.
func (s *Service) SyncMerchantAccount(ctx context.Context, accountID string) (*models.Shop, error) {
	if s.accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account lookup not configured")
	}
	status, err := s.accounts.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.ApplyAccountStatus(ctx, *status)
}

// ApplyAccountStatus stores capability flags reported for a merchant account.
// Unknown accounts are ignored and return nil.
func (s *Service) ApplyAccountStatus(ctx context.Context, status payments.AccountStatus) (*models.Shop, error) {
	accountID := strings.TrimSpace(status.AccountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant account id required")
	}

	var updated *models.Shop
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shop, err := s.repo.FindByMerchantAccountWithTx(tx, accountID)
		if errors.Is(err, ErrShopNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop by merchant account")
		}
		if shop.ChargesEnabled == status.ChargesEnabled &&
			shop.PayoutsEnabled == status.PayoutsEnabled &&
			shop.DetailsSubmitted == status.DetailsSubmitted {
			updated = shop
			return nil
		}
		if err := s.repo.UpdateCapabilitiesWithTx(tx, shop.ID, status.ChargesEnabled, status.PayoutsEnabled, status.DetailsSubmitted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shop capabilities")
		}
		shop.ChargesEnabled = status.ChargesEnabled
		shop.PayoutsEnabled = status.PayoutsEnabled
		shop.DetailsSubmitted = status.DetailsSubmitted
		updated = shop

		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShopPayabilitySync,
			AggregateType: enums.AggregateShop,
			AggregateID:   shop.ID,
			Data: outbox.ShopPayabilityEvent{
				ShopID:           shop.ID,
				ChargesEnabled:   shop.ChargesEnabled,
				PayoutsEnabled:   shop.PayoutsEnabled,
				DetailsSubmitted: shop.DetailsSubmitted,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if updated != nil && s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithShopID(ctx, updated.ID.String()), map[string]any{
			"charges_enabled": updated.ChargesEnabled,
			"payouts_enabled": updated.PayoutsEnabled,
		})
		s.logg.Info(logCtx, "merchant capabilities synced")
	}
	return updated, nil
}
