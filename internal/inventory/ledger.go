package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/outbox"
)

const (
	defaultTTL         = 15 * time.Minute
	defaultMaxAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type casRecorder interface {
	IncCASRetry(operation string)
}

// ReserveRequest asks for a hold of Quantity units of an item on behalf of
// an in-progress order.
type ReserveRequest struct {
	ReservationID uuid.UUID
	ItemID        uuid.UUID
	ShopID        uuid.UUID
	OrderID       uuid.UUID
	Quantity      int
	// ExpiresAt defaults to now plus the ledger TTL.
	ExpiresAt time.Time
}

// Hold is a created reservation plus the item as it was when reserved.
type Hold struct {
	Reservation models.Reservation
	Item        models.Item
}

type LedgerParams struct {
	Tx          txRunner
	Repo        Repository
	Outbox      outbox.Emitter
	Logger      *logger.Logger
	Metrics     casRecorder
	TTL         time.Duration
	MaxAttempts int
	Clock       func() time.Time
}

// Ledger owns every reservation and every write to item stock counters.
type Ledger struct {
	tx          txRunner
	repo        Repository
	outbox      outbox.Emitter
	logg        *logger.Logger
	metrics     casRecorder
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewLedger(params LedgerParams) (*Ledger, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{
		tx:          params.Tx,
		repo:        params.Repo,
		outbox:      params.Outbox,
		logg:        params.Logger,
		metrics:     params.Metrics,
		ttl:         ttl,
		maxAttempts: attempts,
		now:         clock,
	}, nil
}

// TTL reports how long new holds live.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Reserve creates a held reservation in its own transaction.
func (l *Ledger) Reserve(ctx context.Context, req ReserveRequest) (*Hold, error) {
	var hold *Hold
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		hold, err = l.ReserveTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ReserveTx creates a held reservation using the caller's transaction.
func (l *Ledger) ReserveTx(ctx context.Context, tx *gorm.DB, req ReserveRequest) (*Hold, error) {
	if req.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for item %s must be positive", req.ItemID))
	}
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	repo := l.repo.WithTx(tx)

	item, tracked, err := l.claimStock(ctx, repo, req)
	if err != nil {
		return nil, err
	}

	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = l.now().Add(l.ttl)
	}
	reservation := models.Reservation{
		ID:        req.ReservationID,
		ItemID:    item.ID,
		OrderID:   req.OrderID,
		Quantity:  req.Quantity,
		Tracked:   tracked,
		State:     enums.ReservationStateHeld,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := repo.CreateReservation(ctx, &reservation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create reservation")
	}
	return &Hold{Reservation: reservation, Item: *item}, nil
}

// claimStock validates the item and, for tracked stock, bumps the held
// counter with a version-guarded write.
func (l *Ledger) claimStock(ctx context.Context, repo Repository, req ReserveRequest) (*models.Item, bool, error) {
	for attempt := 1; ; attempt++ {
		item, err := repo.FindItem(ctx, req.ItemID)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
		}
		if item == nil {
			return nil, false, itemUnavailable(req.ItemID, "", "not on the menu")
		}
		if req.ShopID != uuid.Nil && item.ShopID != req.ShopID {
			return nil, false, itemUnavailable(item.ID, item.Name, "sold by another shop")
		}
		if item.DeletedAt.Valid {
			return nil, false, itemUnavailable(item.ID, item.Name, "no longer sold")
		}

		switch item.StockPolicy {
		case enums.StockPolicyHidden:
			return nil, false, itemUnavailable(item.ID, item.Name, "hidden")
		case enums.StockPolicyUnlimited:
			return item, false, nil
		case enums.StockPolicyTracked:
		default:
			return nil, false, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("item %s has unknown stock policy %q", item.ID, item.StockPolicy))
		}

		available := item.Available()
		if available < req.Quantity {
			return nil, false, insufficientStock(item.ID, item.Name, req.Quantity, available)
		}

		ok, err := repo.CompareAndSwapStock(ctx, item.ID, item.Version, item.StockCount, item.HeldQty+req.Quantity)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
		}
		if ok {
			item.HeldQty += req.Quantity
			item.Version++
			return item, true, nil
		}
		if attempt >= l.maxAttempts {
			return nil, false, contention(item.ID, "reserve", attempt)
		}
		l.recordRetry("reserve")
	}
}

// Commit turns a held reservation into a permanent stock decrement.
func (l *Ledger) Commit(ctx context.Context, reservationID uuid.UUID) error {
	return l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return l.CommitTx(ctx, tx, reservationID)
	})
}

// CommitTx commits using the caller's transaction. Committing twice is a
// no-op; committing a released hold fails with ErrReservationReleased.
func (l *Ledger) CommitTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error {
	repo := l.repo.WithTx(tx)
	reservation, err := repo.FindReservation(ctx, reservationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	if reservation == nil {
		return reservationNotFound(reservationID)
	}

	switch reservation.State {
	case enums.ReservationStateCommitted:
		return nil
	case enums.ReservationStateReleased:
		return releasedError(reservation)
	}

	ok, err := repo.MarkCommitted(ctx, reservation.ID, l.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark reservation committed")
	}
	if !ok {
		current, err := repo.FindReservation(ctx, reservation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload reservation")
		}
		if current != nil && current.State == enums.ReservationStateCommitted {
			return nil
		}
		return releasedError(reservation)
	}

	if !reservation.Tracked {
		return nil
	}
	return l.settleCounters(ctx, repo, reservation, true)
}

// Release returns a held reservation to stock in its own transaction. It
// reports whether this call performed the release.
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID, reason enums.ReleaseReason) (bool, error) {
	var released bool
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		released, err = l.ReleaseTx(ctx, tx, reservationID, reason)
		return err
	})
	return released, err
}

// ReleaseTx releases using the caller's transaction. Releasing an already
// released hold does nothing. Releasing a committed hold does nothing and
// is logged as a conflict.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, reason enums.ReleaseReason) (bool, error) {
	repo := l.repo.WithTx(tx)
	reservation, err := repo.FindReservation(ctx, reservationID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	if reservation == nil {
		return false, reservationNotFound(reservationID)
	}
	if reservation.State != enums.ReservationStateHeld {
		l.logSkippedRelease(ctx, reservation, reason)
		return false, nil
	}

	ok, err := repo.MarkReleased(ctx, reservation.ID, l.now(), reason)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark reservation released")
	}
	if !ok {
		current, err := repo.FindReservation(ctx, reservation.ID)
		if err == nil && current != nil {
			l.logSkippedRelease(ctx, current, reason)
		}
		return false, nil
	}

	if reservation.Tracked {
		if err := l.settleCounters(ctx, repo, reservation, false); err != nil {
			return false, err
		}
	}

	if l.outbox != nil {
		err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: outbox.ReservationReleasedEvent{
				ReservationID: reservation.ID,
				ItemID:        reservation.ItemID,
				OrderID:       reservation.OrderID,
				Quantity:      reservation.Quantity,
				Reason:        string(reason),
			},
		})
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit reservation released")
		}
	}
	return true, nil
}

// settleCounters drops the hold from held_qty and, on commit, from the
// on-hand stock as well.
func (l *Ledger) settleCounters(ctx context.Context, repo Repository, reservation *models.Reservation, commit bool) error {
	op := "release"
	if commit {
		op = "commit"
	}
	for attempt := 1; ; attempt++ {
		item, err := repo.FindItem(ctx, reservation.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
		}
		if item == nil {
			if l.logg != nil {
				l.logg.Warn(l.reservationCtx(ctx, reservation), "reserved item no longer exists; counters skipped")
			}
			return nil
		}

		held := item.HeldQty - reservation.Quantity
		if held < 0 {
			if l.logg != nil {
				l.logg.Warn(l.reservationCtx(ctx, reservation), fmt.Sprintf("held quantity %d below hold %d; clamping", item.HeldQty, reservation.Quantity))
			}
			held = 0
		}
		stock := item.StockCount
		if commit && item.StockPolicy == enums.StockPolicyTracked {
			stock -= reservation.Quantity
			if stock < 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("committing %d of item %q would drive stock negative", reservation.Quantity, item.Name))
			}
		}

		ok, err := repo.CompareAndSwapStock(ctx, item.ID, item.Version, stock, held)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op+" stock")
		}
		if ok {
			return nil
		}
		if attempt >= l.maxAttempts {
			return contention(item.ID, op, attempt)
		}
		l.recordRetry(op)
	}
}

// ReleaseExpired releases held reservations whose expiry has passed. Each
// release runs in its own transaction; failures are collected and the
// sweep continues.
func (l *Ledger) ReleaseExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	expired, err := l.repo.ListExpiredHeld(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired reservations")
	}
	released := 0
	var errs error
	for _, reservation := range expired {
		if ctx.Err() != nil {
			return released, multierr.Append(errs, ctx.Err())
		}
		ok, err := l.Release(ctx, reservation.ID, enums.ReleaseReasonExpired)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", reservation.ID, err))
			continue
		}
		if ok {
			released++
		}
	}
	return released, errs
}

// ReservationsForOrder lists every hold taken for an order attempt.
func (l *Ledger) ReservationsForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.Reservation, error) {
	rows, err := l.repo.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order reservations")
	}
	return rows, nil
}

func (l *Ledger) recordRetry(op string) {
	if l.metrics != nil {
		l.metrics.IncCASRetry(op)
	}
}

func (l *Ledger) logSkippedRelease(ctx context.Context, reservation *models.Reservation, reason enums.ReleaseReason) {
	if l.logg == nil || reservation.State != enums.ReservationStateCommitted {
		return
	}
	ctx = l.logg.WithField(l.reservationCtx(ctx, reservation), "release_reason", string(reason))
	l.logg.Warn(ctx, "release requested for committed reservation; ignored")
}

func (l *Ledger) reservationCtx(ctx context.Context, reservation *models.Reservation) context.Context {
	return l.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservation.ID.String(),
		"item_id":        reservation.ItemID.String(),
		"order_id":       reservation.OrderID.String(),
		"state":          string(reservation.State),
	})
}

func releasedError(reservation *models.Reservation) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeCheckoutExpired,
		ErrReservationReleased,
		fmt.Sprintf("reservation %s for item %s was already released", reservation.ID, reservation.ItemID),
	)
}
