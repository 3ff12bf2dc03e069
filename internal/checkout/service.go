package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/internal/inventory"
	"github.com/angelmondragon/cafequeue-backend/internal/orders"
	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/outbox"
)

const (
	defaultTaxRateBps = 825
	defaultMaxLines   = 50
	voidConcurrency   = 4
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type shopLookup interface {
	Get(ctx context.Context, shopID uuid.UUID) (*models.Shop, error)
}

type reservationLedger interface {
	TTL() time.Duration
	Reserve(ctx context.Context, req inventory.ReserveRequest) (*inventory.Hold, error)
	Release(ctx context.Context, reservationID uuid.UUID, reason enums.ReleaseReason) (bool, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, reason enums.ReleaseReason) (bool, error)
	CommitTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error
	ReservationsForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.Reservation, error)
}

type orderMachine interface {
	Repo() orders.Repository
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, req orders.TransitionRequest) (*models.Order, error)
}

type outcomeRecorder interface {
	IncCheckout(outcome string)
}

// Pricing holds the money settings applied at checkout.
type Pricing struct {
	Currency       enums.Currency
	TaxRateBps     int
	PlatformFeeBps int
}

type ServiceParams struct {
	Tx        txRunner
	Shops     shopLookup
	Ledger    reservationLedger
	Orders    orderMachine
	Processor payments.Processor
	Outbox    outbox.Emitter
	Metrics   outcomeRecorder
	Logger    *logger.Logger
	Pricing   Pricing
	MaxLines  int
	Clock     func() time.Time
}

// Coordinator drives a checkout from stock holds through payment
// authorization to a visible order. It is the only caller of the payment
// processor.
type Coordinator struct {
	tx        txRunner
	shops     shopLookup
	ledger    reservationLedger
	orders    orderMachine
	processor payments.Processor
	outbox    outbox.Emitter
	metrics   outcomeRecorder
	logg      *logger.Logger
	pricing   Pricing
	maxLines  int
	now       func() time.Time
}

func NewCoordinator(params ServiceParams) (*Coordinator, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Shops == nil {
		return nil, fmt.Errorf("shop lookup required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("reservation ledger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	pricing := params.Pricing
	if pricing.Currency == "" {
		pricing.Currency = enums.CurrencyUSD
	}
	if pricing.TaxRateBps < 0 {
		pricing.TaxRateBps = defaultTaxRateBps
	}
	maxLines := params.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		tx:        params.Tx,
		shops:     params.Shops,
		ledger:    params.Ledger,
		orders:    params.Orders,
		processor: params.Processor,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		pricing:   pricing,
		maxLines:  maxLines,
		now:       clock,
	}, nil
}

// Checkout holds stock for every line, records a provisional order and
// opens a payment authorization. Either every line is held or none is.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*Result, error) {
	lines, err := c.normalizeLines(req)
	if err != nil {
		return nil, err
	}
	now := c.now()
	pickupAt := req.PickupAt.UTC()
	if req.PickupAt.IsZero() {
		pickupAt = now
	} else if pickupAt.Before(now.Add(-time.Minute)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup time is in the past")
	}

	shop, err := c.shops.Get(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	if !shop.IsOpen {
		c.record("rejected")
		return nil, shopNotPayable(shop.ID, "shop is closed")
	}
	if !shop.IsPayable() {
		c.record("rejected")
		return nil, shopNotPayable(shop.ID, "merchant account cannot take charges")
	}

	orderID := uuid.New()
	expiresAt := now.Add(c.ledger.TTL())
	ctx = c.orderCtx(ctx, orderID)

	holds := make([]*inventory.Hold, 0, len(lines))
	for _, line := range lines {
		hold, err := c.ledger.Reserve(ctx, inventory.ReserveRequest{
			ReservationID: uuid.New(),
			ItemID:        line.ItemID,
			ShopID:        shop.ID,
			OrderID:       orderID,
			Quantity:      line.Quantity,
			ExpiresAt:     expiresAt,
		})
		if err != nil {
			c.abandonHolds(ctx, holds)
			c.record("rejected")
			return nil, err
		}
		holds = append(holds, hold)
	}

	priced := make([]PricedLine, len(holds))
	orderLines := make([]models.OrderLine, len(holds))
	for i, hold := range holds {
		priced[i] = PricedLine{UnitPriceCents: hold.Item.PriceCents, Quantity: hold.Reservation.Quantity}
		orderLines[i] = models.OrderLine{
			Position:       i,
			ItemID:         hold.Item.ID,
			ReservationID:  hold.Reservation.ID,
			Name:           hold.Item.Name,
			UnitPriceCents: hold.Item.PriceCents,
			Quantity:       hold.Reservation.Quantity,
			LineTotalCents: priced[i].LineTotal(),
		}
	}
	totals := Price(priced, c.taxRateFor(shop), c.pricing.PlatformFeeBps, c.pricing.Currency)

	order := models.Order{
		ID:                  orderID,
		ShopID:              shop.ID,
		CustomerID:          req.CustomerID,
		Status:              enums.OrderStatusPendingPayment,
		PickupAt:            pickupAt,
		Currency:            totals.Currency,
		SubtotalCents:       totals.SubtotalCents,
		TaxRateBps:          totals.TaxRateBps,
		TaxCents:            totals.TaxCents,
		TotalCents:          totals.TotalCents,
		ApplicationFeeCents: totals.ApplicationFeeCents,
		ExpiresAt:           expiresAt,
		Lines:               orderLines,
	}
	if err := c.orders.Repo().Create(ctx, &order); err != nil {
		c.abandonHolds(ctx, holds)
		c.record("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	handle, err := c.processor.CreateAuthorization(ctx, payments.AuthorizationRequest{
		OrderID:             order.ID,
		ShopID:              shop.ID,
		AmountCents:         totals.TotalCents,
		Currency:            string(totals.Currency),
		DestinationAccount:  shop.MerchantAccount(),
		ApplicationFeeCents: totals.ApplicationFeeCents,
		IdempotencyKey:      "checkout-" + order.ID.String(),
	})
	if err != nil {
		reason := CancelReasonAuthError
		if errors.Is(err, payments.ErrDeclined) {
			reason = CancelReasonPaymentFailed
		}
		if failErr := c.cancelProvisional(ctx, &order, reason, err.Error()); failErr != nil {
			c.logError(ctx, "cancel order after authorization error", failErr)
		}
		c.record("failed")
		if errors.Is(err, payments.ErrDeclined) {
			return nil, paymentFailed(order.ID, "authorization", declineMessage(err))
		}
		return nil, err
	}
	if err := c.orders.Repo().SetPaymentHandle(ctx, order.ID, handle.ID); err != nil {
		if voidErr := c.processor.Void(context.WithoutCancel(ctx), handle.ID); voidErr != nil {
			c.logError(ctx, "void orphaned authorization", voidErr)
		}
		if failErr := c.cancelProvisional(ctx, &order, CancelReasonAuthError, "store payment handle"); failErr != nil {
			c.logError(ctx, "cancel order after handle write", failErr)
		}
		c.record("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment handle")
	}

	c.record("started")
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"shop_id":     shop.ID.String(),
			"total_cents": totals.TotalCents,
			"lines":       len(holds),
		})
		c.logg.Info(logCtx, "checkout started")
	}
	return &Result{
		OrderID:   order.ID,
		Handle:    *handle,
		Totals:    totals,
		ExpiresAt: expiresAt,
	}, nil
}

// Confirm applies the processor's current view of the customer's payment.
func (c *Coordinator) Confirm(ctx context.Context, customerID, orderID uuid.UUID) (*Confirmation, error) {
	order, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, orders.ErrNotFound, fmt.Sprintf("order %s not found", orderID))
	}
	ctx = c.orderCtx(ctx, order.ID)
	if order.IsVisible() {
		return &Confirmation{Order: order, Status: payments.StatusAuthorized}, nil
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, terminalError(order.ID, order.CancelReason, "confirmation")
	}
	if order.PaymentHandleID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %s has no payment handle yet", order.ID))
	}

	outcome, err := c.processor.ConfirmAuthorization(ctx, *order.PaymentHandleID)
	if err != nil {
		return nil, err
	}
	return c.apply(ctx, order, *outcome)
}

// HandleAuthorizationOutcome applies an outcome pushed by the processor.
// Delivering the same outcome again returns the same result.
func (c *Coordinator) HandleAuthorizationOutcome(ctx context.Context, outcome payments.Outcome) (*Confirmation, error) {
	order, err := c.orders.Repo().FindByPaymentHandle(ctx, outcome.HandleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by payment handle")
	}
	if order == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, orders.ErrNotFound, fmt.Sprintf("no order for payment handle %s", outcome.HandleID))
	}
	return c.apply(c.orderCtx(ctx, order.ID), order, outcome)
}

func (c *Coordinator) apply(ctx context.Context, order *models.Order, outcome payments.Outcome) (*Confirmation, error) {
	switch outcome.Status {
	case payments.StatusAuthorized:
		return c.materialize(ctx, order, outcome)
	case payments.StatusDeclined:
		return nil, c.decline(ctx, order, outcome)
	default:
		if order.Status == enums.OrderStatusPendingPayment && !c.now().Before(order.ExpiresAt) {
			if err := c.expire(ctx, order); err != nil {
				return nil, err
			}
			return nil, checkoutExpired(order.ID, "confirmation")
		}
		return &Confirmation{Order: order, Status: payments.StatusPending}, nil
	}
}

// materialize commits every hold and promotes the order in one transaction.
func (c *Coordinator) materialize(ctx context.Context, order *models.Order, outcome payments.Outcome) (*Confirmation, error) {
	if order.IsVisible() {
		return &Confirmation{Order: order, Status: payments.StatusAuthorized}, nil
	}
	if order.Status == enums.OrderStatusCancelled {
		c.voidHandle(ctx, outcome.HandleID)
		return nil, terminalError(order.ID, order.CancelReason, "authorization")
	}
	if !c.now().Before(order.ExpiresAt) {
		if err := c.expire(ctx, order); err != nil {
			return nil, err
		}
		return nil, checkoutExpired(order.ID, "authorization")
	}

	ref := outcome.PaymentRef
	if ref == "" {
		ref = outcome.HandleID
	}

	var placed *models.Order
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservations, err := c.ledger.ReservationsForOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if len(reservations) != len(order.Lines) {
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("order %s has %d holds for %d lines", order.ID, len(reservations), len(order.Lines)))
		}
		for _, reservation := range reservations {
			if err := c.ledger.CommitTx(ctx, tx, reservation.ID); err != nil {
				return err
			}
		}
		placed, err = c.orders.TransitionTx(ctx, tx, orders.TransitionRequest{
			OrderID:    order.ID,
			Target:     enums.OrderStatusPending,
			Actor:      orders.ActorCoordinator,
			PaymentRef: ref,
		})
		if err != nil {
			return err
		}
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   placed.ID,
			Data: outbox.OrderCreatedEvent{
				OrderID:    placed.ID,
				ShopID:     placed.ShopID,
				CustomerID: placed.CustomerID,
				TotalCents: placed.TotalCents,
				Currency:   string(placed.Currency),
				PickupAt:   placed.PickupAt,
				PaymentRef: ref,
			},
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, inventory.ErrReservationReleased):
		if expErr := c.expire(ctx, order); expErr != nil {
			return nil, expErr
		}
		return nil, checkoutExpired(order.ID, "authorization")
	case errors.Is(err, orders.ErrIllegalTransition):
		// another delivery of the outcome won the race
		current, loadErr := c.orders.Get(ctx, order.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.IsVisible() {
			return &Confirmation{Order: current, Status: payments.StatusAuthorized}, nil
		}
		c.voidHandle(ctx, outcome.HandleID)
		return nil, terminalError(current.ID, current.CancelReason, "authorization")
	default:
		return nil, err
	}

	c.record("placed")
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "payment_ref", ref), "order placed")
	}
	return &Confirmation{Order: placed, Status: payments.StatusAuthorized}, nil
}

func (c *Coordinator) decline(ctx context.Context, order *models.Order, outcome payments.Outcome) error {
	reason := outcome.FailureReason
	if reason == "" {
		reason = "declined by processor"
	}
	if order.IsVisible() {
		// a late decline cannot undo a placed order
		if c.logg != nil {
			c.logg.Warn(ctx, "decline received for placed order; ignored")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order %s is already placed", order.ID))
	}
	if order.Status == enums.OrderStatusPendingPayment {
		if err := c.cancelProvisional(ctx, order, CancelReasonPaymentFailed, reason); err != nil {
			return err
		}
		c.record("failed")
	}
	return paymentFailed(order.ID, "authorization", reason)
}

// ExpireStale cancels provisional orders whose hold window has passed and
// voids their authorizations. It returns how many orders were expired.
func (c *Coordinator) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	stale, err := c.orders.Repo().ListExpiredPendingPayment(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired checkouts")
	}

	expired := 0
	var errs error
	var handles []string
	for i := range stale {
		order := &stale[i]
		if ctx.Err() != nil {
			return expired, multierr.Append(errs, ctx.Err())
		}
		ok, err := c.cancelExpired(c.orderCtx(ctx, order.ID), order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if !ok {
			continue
		}
		expired++
		if order.PaymentHandleID != nil {
			handles = append(handles, *order.PaymentHandleID)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(voidConcurrency)
	for _, handle := range handles {
		g.Go(func() error {
			if err := c.processor.Void(gctx, handle); err != nil {
				return fmt.Errorf("void %s: %w", handle, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return expired, errs
}

// Settle runs after a status change. Completed orders capture their
// authorization; cancelled placed orders void it.
func (c *Coordinator) Settle(ctx context.Context, order *models.Order) error {
	if order == nil || order.PaymentHandleID == nil {
		return nil
	}
	switch order.Status {
	case enums.OrderStatusCompleted:
		if err := c.processor.Capture(ctx, *order.PaymentHandleID); err != nil {
			return err
		}
		c.record("captured")
	case enums.OrderStatusCancelled:
		if !order.IsVisible() {
			return nil
		}
		if err := c.processor.Void(ctx, *order.PaymentHandleID); err != nil {
			return err
		}
		c.record("voided")
	}
	return nil
}

// expire cancels a provisional order as expired and voids its handle.
func (c *Coordinator) expire(ctx context.Context, order *models.Order) error {
	if _, err := c.cancelExpired(ctx, order); err != nil {
		return err
	}
	if order.PaymentHandleID != nil {
		c.voidHandle(ctx, *order.PaymentHandleID)
	}
	return nil
}

// cancelExpired releases the holds, cancels the order and records
// order_expired. It reports false when the order had already left
// pending_payment.
func (c *Coordinator) cancelExpired(ctx context.Context, order *models.Order) (bool, error) {
	expiredAt := c.now()
	applied := false
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := c.cancelTx(ctx, tx, order, CancelReasonExpired, enums.ReleaseReasonExpired)
		if err != nil || !ok {
			return err
		}
		applied = true
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.OrderExpiredEvent{
				OrderID:   order.ID,
				ShopID:    order.ShopID,
				ExpiredAt: expiredAt,
			},
		})
	})
	if err != nil {
		return false, err
	}
	if applied {
		c.record("expired")
		if c.logg != nil {
			c.logg.Info(ctx, "checkout expired")
		}
	}
	return applied, nil
}

// cancelProvisional releases the holds, cancels the order and records
// payment_failed. It runs even when the caller's context is already done.
func (c *Coordinator) cancelProvisional(ctx context.Context, order *models.Order, reason, detail string) error {
	ctx = context.WithoutCancel(ctx)
	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := c.cancelTx(ctx, tx, order, reason, enums.ReleaseReasonPaymentFailed)
		if err != nil || !ok {
			return err
		}
		handle := ""
		if order.PaymentHandleID != nil {
			handle = *order.PaymentHandleID
		}
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.PaymentFailedEvent{
				OrderID:         order.ID,
				ShopID:          order.ShopID,
				PaymentHandleID: handle,
				Reason:          detail,
			},
		})
	})
}

// cancelTx moves a provisional order to cancelled and releases its holds,
// newest first. It reports false when the order had already moved on.
func (c *Coordinator) cancelTx(ctx context.Context, tx *gorm.DB, order *models.Order, reason string, release enums.ReleaseReason) (bool, error) {
	cancelled, err := c.orders.TransitionTx(ctx, tx, orders.TransitionRequest{
		OrderID: order.ID,
		Target:  enums.OrderStatusCancelled,
		Actor:   orders.ActorCoordinator,
		Reason:  reason,
	})
	if errors.Is(err, orders.ErrIllegalTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	reservations, err := c.ledger.ReservationsForOrder(ctx, tx, order.ID)
	if err != nil {
		return false, err
	}
	for i := len(reservations) - 1; i >= 0; i-- {
		if _, err := c.ledger.ReleaseTx(ctx, tx, reservations[i].ID, release); err != nil {
			return false, err
		}
	}
	*order = *cancelled
	return true, nil
}

// abandonHolds releases holds taken by a checkout that never produced an
// order, newest first. A cancelled caller does not stop the release.
func (c *Coordinator) abandonHolds(ctx context.Context, holds []*inventory.Hold) {
	ctx = context.WithoutCancel(ctx)
	for i := len(holds) - 1; i >= 0; i-- {
		if _, err := c.ledger.Release(ctx, holds[i].Reservation.ID, enums.ReleaseReasonCheckoutAbort); err != nil {
			// the reservation sweep frees it at expiry
			c.logError(ctx, "release hold "+holds[i].Reservation.ID.String()+" after failed checkout", err)
		}
	}
}

func (c *Coordinator) voidHandle(ctx context.Context, handleID string) {
	if handleID == "" {
		return
	}
	if err := c.processor.Void(context.WithoutCancel(ctx), handleID); err != nil {
		c.logError(ctx, "void authorization "+handleID, err)
		return
	}
	c.record("voided")
}

func (c *Coordinator) normalizeLines(req Request) ([]LineRequest, error) {
	if req.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if req.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line")
	}

	// repeated items collapse into the first line's position
	merged := make([]LineRequest, 0, len(req.Lines))
	index := make(map[uuid.UUID]int, len(req.Lines))
	for i, line := range req.Lines {
		if line.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: item id required", i+1))
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if at, ok := index[line.ItemID]; ok {
			merged[at].Quantity += line.Quantity
			continue
		}
		index[line.ItemID] = len(merged)
		merged = append(merged, line)
	}
	if len(merged) > c.maxLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order may contain at most %d items", c.maxLines))
	}
	return merged, nil
}

func (c *Coordinator) taxRateFor(shop *models.Shop) int {
	if shop.TaxRateBps != nil && *shop.TaxRateBps >= 0 {
		return *shop.TaxRateBps
	}
	return c.pricing.TaxRateBps
}

func declineMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

func (c *Coordinator) record(outcome string) {
	if c.metrics != nil {
		c.metrics.IncCheckout(outcome)
	}
}

func (c *Coordinator) orderCtx(ctx context.Context, orderID uuid.UUID) context.Context {
	if c.logg == nil {
		return ctx
	}
	return c.logg.WithOrderID(ctx, orderID.String())
}

func (c *Coordinator) logError(ctx context.Context, msg string, err error) {
	if c.logg != nil {
		c.logg.Error(ctx, msg, err)
	}
}
