package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/internal/orders"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/pagination"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBufferSize   = 32
	defaultLookback     = time.Minute
)

type orderMachine interface {
	Repo() orders.Repository
	GetVisible(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, req orders.TransitionRequest) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error)
	ListByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error)
}

type ownerChecker interface {
	IsOwner(ctx context.Context, shopID, userID uuid.UUID) (bool, error)
}

type settler interface {
	Settle(ctx context.Context, order *models.Order) error
}

// OrderSnapshot is one emission of a shop's order stream.
type OrderSnapshot struct {
	orders.OrderView
	NextStatuses []enums.OrderStatus `json:"next_statuses"`
}

func snapshotOf(order models.Order) OrderSnapshot {
	return OrderSnapshot{
		OrderView:    orders.ToView(order),
		NextStatuses: ownerNextStatuses(order.Status),
	}
}

func ownerNextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	out := []enums.OrderStatus{}
	for _, to := range orders.NextStatuses(from) {
		if orders.CheckTransition(from, to, orders.ActorShopOwner) == nil {
			out = append(out, to)
		}
	}
	return out
}

type NotifierParams struct {
	Orders        orderMachine
	Shops         ownerChecker
	Settler       settler
	Invalidations Invalidations
	Logger        *logger.Logger
	PollInterval  time.Duration
	BufferSize    int
	// Lookback widens every refresh query to absorb clock skew between
	// writers.
	Lookback time.Duration
	Clock    func() time.Time
}

// Notifier streams a shop's live orders and applies owner status changes.
type Notifier struct {
	orders        orderMachine
	shops         ownerChecker
	settler       settler
	invalidations Invalidations
	logg          *logger.Logger
	poll          time.Duration
	buffer        int
	lookback      time.Duration
	now           func() time.Time
}

func NewNotifier(params NotifierParams) (*Notifier, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Shops == nil {
		return nil, fmt.Errorf("shop owner checker required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settle hook required")
	}
	poll := params.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	buffer := params.BufferSize
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Notifier{
		orders:        params.Orders,
		shops:         params.Shops,
		settler:       params.Settler,
		invalidations: params.Invalidations,
		logg:          params.Logger,
		poll:          poll,
		buffer:        buffer,
		lookback:      lookback,
		now:           clock,
	}, nil
}

type seenState struct {
	status    enums.OrderStatus
	updatedAt time.Time
}

// Subscribe streams the shop's visible non-terminal orders, oldest first,
// then every order whose status or updated_at changes. The channel closes
// when ctx ends; call Subscribe again to restart.
func (n *Notifier) Subscribe(ctx context.Context, shopID uuid.UUID) (<-chan OrderSnapshot, error) {
	since := n.now().Add(-n.lookback)
	active, err := n.orders.Repo().ListActiveByShop(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active orders")
	}
	recent, err := n.orders.Repo().ListUpdatedSince(ctx, shopID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list recent orders")
	}

	var signals <-chan struct{}
	stop := func() {}
	if n.invalidations != nil {
		signals, stop, err = n.invalidations.Listen(ctx, shopID)
		if err != nil {
			// polling still keeps the stream current
			n.warn(ctx, shopID, "invalidation listener unavailable: "+err.Error())
			signals, stop = nil, func() {}
		}
	}

	seen := make(map[uuid.UUID]seenState, len(active)+len(recent))
	for _, order := range recent {
		seen[order.ID] = seenState{status: order.Status, updatedAt: order.UpdatedAt}
	}
	for _, order := range active {
		seen[order.ID] = seenState{status: order.Status, updatedAt: order.UpdatedAt}
	}

	out := make(chan OrderSnapshot, n.buffer)
	go func() {
		defer close(out)
		defer stop()

		for _, order := range active {
			if !n.emit(ctx, out, order) {
				return
			}
		}

		ticker := time.NewTicker(n.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-signals:
				if !ok {
					signals = nil
					continue
				}
			}
			if !n.refresh(ctx, shopID, seen, out) {
				return
			}
		}
	}()
	return out, nil
}

// refresh emits orders changed since the last look. It returns false once
// ctx has ended.
func (n *Notifier) refresh(ctx context.Context, shopID uuid.UUID, seen map[uuid.UUID]seenState, out chan<- OrderSnapshot) bool {
	since := n.now().Add(-n.lookback)
	changed, err := n.orders.Repo().ListUpdatedSince(ctx, shopID, since)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		n.warn(ctx, shopID, "refresh order stream: "+err.Error())
		return true
	}
	for _, order := range changed {
		prev, ok := seen[order.ID]
		if ok && prev.status == order.Status && prev.updatedAt.Equal(order.UpdatedAt) {
			continue
		}
		seen[order.ID] = seenState{status: order.Status, updatedAt: order.UpdatedAt}
		if !n.emit(ctx, out, order) {
			return false
		}
	}
	for id, state := range seen {
		if state.updatedAt.Before(since) {
			delete(seen, id)
		}
	}
	return true
}

func (n *Notifier) emit(ctx context.Context, out chan<- OrderSnapshot, order models.Order) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- snapshotOf(order):
		return true
	}
}

// RequestTransition moves an order on behalf of the owner of its shop,
// then settles payment and notifies subscribers.
func (n *Notifier) RequestTransition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actorID uuid.UUID) (*OrderSnapshot, error) {
	order, err := n.orders.GetVisible(ctx, orderID)
	if err != nil {
		return nil, err
	}
	owner, err := n.shops.IsOwner(ctx, order.ShopID, actorID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, orders.Unauthorized(orderID)
	}
	return n.apply(ctx, orders.TransitionRequest{
		OrderID: order.ID,
		Target:  target,
		Actor:   orders.ActorShopOwner,
		ActorID: actorID,
	})
}

// AdminCancel cancels an order regardless of shop ownership.
func (n *Notifier) AdminCancel(ctx context.Context, orderID, adminID uuid.UUID, reason string) (*OrderSnapshot, error) {
	if _, err := n.orders.GetVisible(ctx, orderID); err != nil {
		return nil, err
	}
	return n.apply(ctx, orders.TransitionRequest{
		OrderID: orderID,
		Target:  enums.OrderStatusCancelled,
		Actor:   orders.ActorAdmin,
		ActorID: adminID,
		Reason:  reason,
	})
}

func (n *Notifier) apply(ctx context.Context, req orders.TransitionRequest) (*OrderSnapshot, error) {
	updated, err := n.orders.Transition(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := n.settler.Settle(ctx, updated); err != nil {
		// the status change stands; settlement failures are only logged
		if n.logg != nil {
			n.logg.Error(n.logg.WithOrderID(ctx, updated.ID.String()), "settle payment after transition", err)
		}
	}
	if n.invalidations != nil {
		if err := n.invalidations.Publish(ctx, updated.ShopID, updated.ID); err != nil {
			n.warn(ctx, updated.ShopID, "publish order invalidation: "+err.Error())
		}
	}
	snap := snapshotOf(*updated)
	return &snap, nil
}

// CustomerOrders pages the caller's placed orders.
func (n *Notifier) CustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return n.orders.ListByCustomer(ctx, customerID, params, filters)
}

// ShopOrders pages a shop's placed orders for its owner.
func (n *Notifier) ShopOrders(ctx context.Context, shopID, actorID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	if err := n.EnsureOwner(ctx, shopID, actorID); err != nil {
		return nil, err
	}
	return n.orders.ListByShop(ctx, shopID, params, filters)
}

// EnsureOwner fails with FORBIDDEN unless actorID owns the shop.
func (n *Notifier) EnsureOwner(ctx context.Context, shopID, actorID uuid.UUID) error {
	owner, err := n.shops.IsOwner(ctx, shopID, actorID)
	if err != nil {
		return err
	}
	if !owner {
		return pkgerrors.New(pkgerrors.CodeForbidden, "shop belongs to another owner")
	}
	return nil
}

func (n *Notifier) warn(ctx context.Context, shopID uuid.UUID, msg string) {
	if n.logg == nil {
		return
	}
	n.logg.Warn(n.logg.WithShopID(ctx, shopID.String()), msg)
}
