package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/outbox"
	"github.com/angelmondragon/cafequeue-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

type ServiceParams struct {
	Tx      txRunner
	Repo    Repository
	Outbox  outbox.Emitter
	Metrics transitionRecorder
	Logger  *logger.Logger
	Clock   func() time.Time
}

// Service is the order state machine. It is the only writer of order status.
type Service struct {
	tx      txRunner
	repo    Repository
	outbox  outbox.Emitter
	metrics transitionRecorder
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		tx:      params.Tx,
		repo:    params.Repo,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

// Repo exposes the underlying repository to collaborators that create
// provisional orders.
func (s *Service) Repo() Repository {
	return s.repo
}

// Get loads an order by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		return nil, orderNotFound(id)
	}
	return order, nil
}

// GetVisible loads an order that has been placed; provisional orders are
// reported as missing.
func (s *Service) GetVisible(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsVisible() {
		return nil, orderNotFound(id)
	}
	return order, nil
}

// Transition applies one status change in its own transaction.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.TransitionTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// TransitionTx applies one status change inside the caller's transaction
// and returns the order with its new status.
func (s *Service) TransitionTx(ctx context.Context, tx *gorm.DB, req TransitionRequest) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		return nil, orderNotFound(req.OrderID)
	}

	from := order.Status
	if err := CheckTransition(from, req.Target, req.Actor); err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]any{"updated_at": now}
	switch req.Target {
	case enums.OrderStatusPending:
		ref := strings.TrimSpace(req.PaymentRef)
		if ref == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required to place order")
		}
		fields["payment_ref"] = ref
		fields["placed_at"] = now
		order.PaymentRef = &ref
		order.PlacedAt = &now
	case enums.OrderStatusCancelled:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = string(req.Actor) + "_cancelled"
		}
		fields["cancelled_at"] = now
		fields["cancel_reason"] = reason
		order.CancelledAt = &now
		order.CancelReason = &reason
	case enums.OrderStatusCompleted:
		fields["completed_at"] = now
		order.CompletedAt = &now
	}

	ok, err := repo.UpdateStatus(ctx, order.ID, from, req.Target, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !ok {
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		actual := from
		if current != nil {
			actual = current.Status
		}
		return nil, illegalTransition(actual, req.Target)
	}
	order.Status = req.Target
	order.UpdatedAt = now

	if from != enums.OrderStatusPendingPayment && s.outbox != nil {
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.OrderStatusChangedEvent{
				OrderID:    order.ID,
				ShopID:     order.ShopID,
				CustomerID: order.CustomerID,
				From:       string(from),
				To:         string(req.Target),
				Reason:     req.Reason,
			},
		}
		if req.ActorID != uuid.Nil {
			event.Actor = &outbox.ActorRef{UserID: req.ActorID, Role: string(req.Actor)}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
		}
	}

	if s.metrics != nil {
		s.metrics.IncTransition(string(from), string(req.Target))
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"from":  string(from),
			"to":    string(req.Target),
			"actor": string(req.Actor),
		})
		s.logg.Info(logCtx, "order status changed")
	}
	return order, nil
}

// ListByCustomer pages a customer's placed orders, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	q, err := buildListQuery(params, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByCustomer(ctx, customerID, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customer orders")
	}
	return pageOf(rows, params.Limit), nil
}

// ListByShop pages a shop's placed orders, newest first.
func (s *Service) ListByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	q, err := buildListQuery(params, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByShop(ctx, shopID, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shop orders")
	}
	return pageOf(rows, params.Limit), nil
}

func buildListQuery(params pagination.Params, filters ListFilters) (listQuery, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return listQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return listQuery{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *filters.Status))
	}
	return listQuery{
		status: filters.Status,
		limit:  pagination.LimitWithBuffer(params.Limit),
		cursor: cursor,
	}, nil
}

func pageOf(rows []models.Order, limit int) *OrderList {
	rows, more := pagination.Trim(rows, limit)
	list := &OrderList{Orders: make([]OrderView, 0, len(rows))}
	if more {
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, ToView(row))
	}
	return list
}
