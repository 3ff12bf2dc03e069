package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db"
	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/outbox"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ledgerFixture struct {
	db     *gorm.DB
	ledger *Ledger
	clock  *fakeClock
	shopID uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))

	shop := models.Shop{Name: "Bean There", OwnerID: uuid.New(), IsOpen: true}
	require.NoError(t, conn.Create(&shop).Error)

	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	ledger, err := NewLedger(LedgerParams{
		Tx:     db.NewFromConn(conn),
		Repo:   NewRepository(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		TTL:    15 * time.Minute,
		Clock:  clock.Now,
	})
	require.NoError(t, err)
	return &ledgerFixture{db: conn, ledger: ledger, clock: clock, shopID: shop.ID}
}

func (f *ledgerFixture) seedItem(t *testing.T, name string, policy enums.StockPolicy) models.Item {
	t.Helper()
	item := models.Item{ShopID: f.shopID, Name: name, PriceCents: 450}
	item.SetPolicy(policy)
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

func (f *ledgerFixture) reload(t *testing.T, id uuid.UUID) models.Item {
	t.Helper()
	var item models.Item
	require.NoError(t, f.db.Unscoped().First(&item, "id = ?", id).Error)
	return item
}

func (f *ledgerFixture) reservation(t *testing.T, id uuid.UUID) models.Reservation {
	t.Helper()
	var r models.Reservation
	require.NoError(t, f.db.First(&r, "id = ?", id).Error)
	return r
}

func (f *ledgerFixture) reserve(item models.Item, qty int) (*Hold, error) {
	return f.ledger.Reserve(context.Background(), ReserveRequest{
		ItemID:   item.ID,
		ShopID:   f.shopID,
		OrderID:  uuid.New(),
		Quantity: qty,
	})
}

func TestTrackedItemScenario(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	itemA := f.seedItem(t, "Item A", enums.Tracked(2))

	first, err := f.reserve(itemA, 2)
	require.NoError(t, err)
	require.Equal(t, enums.ReservationStateHeld, first.Reservation.State)

	_, err = f.reserve(itemA, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	shortage, ok := ShortageFrom(err)
	require.True(t, ok)
	require.Equal(t, 0, shortage.Available)
	require.Equal(t, 1, shortage.Requested)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	released, err := f.ledger.Release(ctx, first.Reservation.ID, enums.ReleaseReasonPaymentFailed)
	require.NoError(t, err)
	require.True(t, released)

	second, err := f.reserve(itemA, 1)
	require.NoError(t, err)
	require.Equal(t, 1, second.Reservation.Quantity)

	stored := f.reload(t, itemA.ID)
	require.Equal(t, 2, stored.StockCount)
	require.Equal(t, 1, stored.HeldQty)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	f := newLedgerFixture(t)
	item := f.seedItem(t, "Cold Brew", enums.Tracked(5))

	const attempts = 12
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
		other        []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reserve(item, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				insufficient++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	require.Equal(t, 5, succeeded)
	require.Equal(t, attempts-5, insufficient)

	stored := f.reload(t, item.ID)
	require.Equal(t, 5, stored.HeldQty)
	require.LessOrEqual(t, stored.HeldQty, stored.StockCount)

	var held int64
	require.NoError(t, f.db.Model(&models.Reservation{}).
		Where("item_id = ? AND state = ?", item.ID, enums.ReservationStateHeld).
		Count(&held).Error)
	require.Equal(t, int64(5), held)
}

func TestReserveUnlimitedHasNoStockImpact(t *testing.T) {
	f := newLedgerFixture(t)
	item := f.seedItem(t, "Drip", enums.Unlimited())

	hold, err := f.reserve(item, 40)
	require.NoError(t, err)
	require.False(t, hold.Reservation.Tracked)

	require.NoError(t, f.ledger.Commit(context.Background(), hold.Reservation.ID))
	stored := f.reload(t, item.ID)
	require.Equal(t, 0, stored.HeldQty)
	require.Equal(t, int64(0), stored.Version)
}

func TestReserveRejectsUnavailableItems(t *testing.T) {
	f := newLedgerFixture(t)
	hidden := f.seedItem(t, "Secret Menu", enums.Hidden())
	deleted := f.seedItem(t, "Pumpkin Latte", enums.Tracked(3))
	require.NoError(t, f.db.Delete(&deleted).Error)

	otherShop := models.Shop{Name: "Other", OwnerID: uuid.New()}
	require.NoError(t, f.db.Create(&otherShop).Error)
	foreign := models.Item{ShopID: otherShop.ID, Name: "Foreign", PriceCents: 100}
	foreign.SetPolicy(enums.Unlimited())
	require.NoError(t, f.db.Create(&foreign).Error)

	for name, item := range map[string]models.Item{"hidden": hidden, "deleted": deleted, "foreign": foreign} {
		_, err := f.reserve(item, 1)
		require.ErrorIs(t, err, ErrItemUnavailable, name)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeItemUnavailable), name)
	}

	_, err := f.reserve(models.Item{ID: uuid.New()}, 1)
	require.ErrorIs(t, err, ErrItemUnavailable)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	f := newLedgerFixture(t)
	item := f.seedItem(t, "Mocha", enums.Tracked(3))

	_, err := f.reserve(item, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCommitDecrementsStockOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Espresso", enums.Tracked(4))

	hold, err := f.reserve(item, 3)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Commit(ctx, hold.Reservation.ID))
	require.NoError(t, f.ledger.Commit(ctx, hold.Reservation.ID))

	stored := f.reload(t, item.ID)
	require.Equal(t, 1, stored.StockCount)
	require.Equal(t, 0, stored.HeldQty)
	require.Equal(t, enums.ReservationStateCommitted, f.reservation(t, hold.Reservation.ID).State)

	_, err = f.reserve(item, 2)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCommitUnknownReservation(t *testing.T) {
	f := newLedgerFixture(t)
	err := f.ledger.Commit(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCommitAfterReleaseFails(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Cortado", enums.Tracked(2))

	hold, err := f.reserve(item, 1)
	require.NoError(t, err)
	_, err = f.ledger.Release(ctx, hold.Reservation.ID, enums.ReleaseReasonExpired)
	require.NoError(t, err)

	err = f.ledger.Commit(ctx, hold.Reservation.ID)
	require.ErrorIs(t, err, ErrReservationReleased)

	stored := f.reload(t, item.ID)
	require.Equal(t, 2, stored.StockCount)
	require.Equal(t, 0, stored.HeldQty)
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Flat White", enums.Tracked(3))

	hold, err := f.reserve(item, 2)
	require.NoError(t, err)
	other, err := f.reserve(item, 1)
	require.NoError(t, err)

	released, err := f.ledger.Release(ctx, hold.Reservation.ID, enums.ReleaseReasonCartChanged)
	require.NoError(t, err)
	require.True(t, released)

	released, err = f.ledger.Release(ctx, hold.Reservation.ID, enums.ReleaseReasonCartChanged)
	require.NoError(t, err)
	require.False(t, released)

	stored := f.reload(t, item.ID)
	require.Equal(t, 1, stored.HeldQty, "second release must not free the other hold")

	require.NoError(t, f.ledger.Commit(ctx, other.Reservation.ID))
	released, err = f.ledger.Release(ctx, other.Reservation.ID, enums.ReleaseReasonPaymentFailed)
	require.NoError(t, err)
	require.False(t, released)

	stored = f.reload(t, item.ID)
	require.Equal(t, 2, stored.StockCount)
	require.Equal(t, 0, stored.HeldQty)
	require.Equal(t, enums.ReservationStateCommitted, f.reservation(t, other.Reservation.ID).State)

	_, err = f.ledger.Release(ctx, uuid.New(), enums.ReleaseReasonExpired)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseEmitsOutboxEvent(t *testing.T) {
	f := newLedgerFixture(t)
	item := f.seedItem(t, "Chai", enums.Tracked(1))

	hold, err := f.reserve(item, 1)
	require.NoError(t, err)
	_, err = f.ledger.Release(context.Background(), hold.Reservation.ID, enums.ReleaseReasonPaymentFailed)
	require.NoError(t, err)

	var events []models.OutboxEvent
	require.NoError(t, f.db.Where("aggregate_id = ?", hold.Reservation.ID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventReservationReleased, events[0].EventType)
}

func TestReleaseExpiredFreesStock(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Macchiato", enums.Tracked(1))

	stale, err := f.reserve(item, 1)
	require.NoError(t, err)

	_, err = f.reserve(item, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)

	count, err := f.ledger.ReleaseExpired(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Zero(t, count, "holds inside their ttl stay held")

	f.clock.Advance(16 * time.Minute)
	count, err = f.ledger.ReleaseExpired(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	r := f.reservation(t, stale.Reservation.ID)
	require.Equal(t, enums.ReservationStateReleased, r.State)
	require.NotNil(t, r.ReleaseReason)
	require.Equal(t, string(enums.ReleaseReasonExpired), *r.ReleaseReason)

	_, err = f.reserve(item, 1)
	require.NoError(t, err)
}

func TestReleaseSettlesSoftDeletedItem(t *testing.T) {
	f := newLedgerFixture(t)
	item := f.seedItem(t, "Seasonal", enums.Tracked(2))

	hold, err := f.reserve(item, 2)
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(&item).Error)

	_, err = f.ledger.Release(context.Background(), hold.Reservation.ID, enums.ReleaseReasonCheckoutAbort)
	require.NoError(t, err)
	require.Equal(t, 0, f.reload(t, item.ID).HeldQty)
}

// racingRepo loses every compare-and-swap.
type racingRepo struct {
	Repository
	item  models.Item
	swaps int
}

func (r *racingRepo) WithTx(*gorm.DB) Repository { return r }

func (r *racingRepo) FindItem(context.Context, uuid.UUID) (*models.Item, error) {
	item := r.item
	item.Version = int64(r.swaps)
	return &item, nil
}

func (r *racingRepo) CompareAndSwapStock(context.Context, uuid.UUID, int64, int, int) (bool, error) {
	r.swaps++
	return false, nil
}

type countingMetrics struct{ retries map[string]int }

func (m *countingMetrics) IncCASRetry(op string) { m.retries[op]++ }

type directTx struct{}

func (directTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestReserveFailsWithContentionAfterBoundedRetries(t *testing.T) {
	item := models.Item{ID: uuid.New(), ShopID: uuid.New(), Name: "Hot Item", StockPolicy: enums.StockPolicyTracked, StockCount: 10}
	repo := &racingRepo{item: item}
	m := &countingMetrics{retries: map[string]int{}}
	ledger, err := NewLedger(LedgerParams{Tx: directTx{}, Repo: repo, Metrics: m, MaxAttempts: 3})
	require.NoError(t, err)

	_, err = ledger.Reserve(context.Background(), ReserveRequest{ItemID: item.ID, ShopID: item.ShopID, OrderID: uuid.New(), Quantity: 1})
	require.ErrorIs(t, err, ErrContention)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeContention))
	require.Equal(t, 3, repo.swaps)
	require.Equal(t, 2, m.retries["reserve"])
}
