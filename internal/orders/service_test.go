package orders

import (
	"context"
	"errors"
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
	"github.com/angelmondragon/cafequeue-backend/pkg/pagination"
)

type recordingMetrics struct{ transitions []string }

func (m *recordingMetrics) IncTransition(from, to string) {
	m.transitions = append(m.transitions, from+"->"+to)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) (*Service, *recordingMetrics) {
	t.Helper()
	m := &recordingMetrics{}
	svc, err := NewService(ServiceParams{
		Tx:      db.NewFromConn(conn),
		Repo:    NewRepository(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics: m,
	})
	require.NoError(t, err)
	return svc, m
}

func seedOrder(t *testing.T, conn *gorm.DB, shopID, customerID uuid.UUID, status enums.OrderStatus, createdAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		ShopID:        shopID,
		CustomerID:    customerID,
		Status:        status,
		PickupAt:      createdAt.Add(30 * time.Minute),
		Currency:      enums.CurrencyUSD,
		SubtotalCents: 1000,
		TaxRateBps:    825,
		TaxCents:      83,
		TotalCents:    1083,
		ExpiresAt:     createdAt.Add(15 * time.Minute),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		Lines: []models.OrderLine{
			{Position: 0, ItemID: uuid.New(), ReservationID: uuid.New(), Name: "Latte", UnitPriceCents: 500, Quantity: 2, LineTotalCents: 1000},
		},
	}
	if status != enums.OrderStatusPendingPayment {
		ref := "ch_" + uuid.NewString()
		placed := createdAt
		order.PaymentRef = &ref
		order.PlacedAt = &placed
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}

func TestTransitionGridLeavesStatusUnchangedWhenIllegal(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	for _, from := range enums.OrderStatuses() {
		for _, to := range enums.OrderStatuses() {
			order := seedOrder(t, conn, uuid.New(), uuid.New(), from, base)
			_, err := svc.Transition(ctx, TransitionRequest{OrderID: order.ID, Target: to, Actor: ActorShopOwner})

			var stored models.Order
			require.NoError(t, conn.First(&stored, "id = ?", order.ID).Error)

			if ownerAdjacency[[2]enums.OrderStatus{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				require.Equal(t, to, stored.Status)
				continue
			}
			require.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, to)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
			require.Equal(t, from, stored.Status, "%s -> %s must not mutate", from, to)
		}
	}
}

func TestPromotionRequiresPaymentRef(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), uuid.New(), enums.OrderStatusPendingPayment, time.Now().UTC())

	_, err := svc.Transition(ctx, TransitionRequest{OrderID: order.ID, Target: enums.OrderStatusPending, Actor: ActorCoordinator})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	placed, err := svc.Transition(ctx, TransitionRequest{OrderID: order.ID, Target: enums.OrderStatusPending, Actor: ActorCoordinator, PaymentRef: "ch_123"})
	require.NoError(t, err)
	require.True(t, placed.IsVisible())

	stored, err := svc.GetVisible(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, stored.Status)
	require.Equal(t, "ch_123", *stored.PaymentRef)
	require.Len(t, stored.Lines, 1)
}

func TestGetVisibleHidesProvisionalOrders(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	order := seedOrder(t, conn, uuid.New(), uuid.New(), enums.OrderStatusPendingPayment, time.Now().UTC())

	_, err := svc.GetVisible(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionEmitsStatusChangeAndMetrics(t *testing.T) {
	conn := newTestDB(t)
	svc, m := newTestService(t, conn)
	order := seedOrder(t, conn, uuid.New(), uuid.New(), enums.OrderStatusPending, time.Now().UTC())
	owner := uuid.New()

	_, err := svc.Transition(context.Background(), TransitionRequest{OrderID: order.ID, Target: enums.OrderStatusAccepted, Actor: ActorShopOwner, ActorID: owner})
	require.NoError(t, err)
	require.Equal(t, []string{"pending->accepted"}, m.transitions)

	events, err := outbox.NewRepository(conn).ListByAggregate(nil, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderStatusChanged, events[0].EventType)

	envelope, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	require.NotNil(t, envelope.Actor)
	require.Equal(t, owner, envelope.Actor.UserID)
}

func TestCancelRecordsReason(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	order := seedOrder(t, conn, uuid.New(), uuid.New(), enums.OrderStatusAccepted, time.Now().UTC())

	cancelled, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID: order.ID, Target: enums.OrderStatusCancelled, Actor: ActorAdmin, Reason: "out of oat milk",
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, "out of oat milk", *cancelled.CancelReason)
}

// staleRepo serves a stale status so the conditional write loses.
type staleRepo struct {
	Repository
	stale models.Order
}

func (r *staleRepo) WithTx(tx *gorm.DB) Repository {
	return &staleRepo{Repository: r.Repository.WithTx(tx), stale: r.stale}
}

func (r *staleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if r.stale.ID == id {
		stale := r.stale
		r.stale = models.Order{}
		return &stale, nil
	}
	return r.Repository.FindByID(ctx, id)
}

func TestConcurrentTransitionLoserSeesActualStatus(t *testing.T) {
	conn := newTestDB(t)
	order := seedOrder(t, conn, uuid.New(), uuid.New(), enums.OrderStatusPending, time.Now().UTC())

	// another request already accepted the order
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusAccepted).Error)

	stale := order
	stale.Status = enums.OrderStatusPending
	svc, err := NewService(ServiceParams{
		Tx:   db.NewFromConn(conn),
		Repo: &staleRepo{Repository: NewRepository(conn), stale: stale},
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), TransitionRequest{OrderID: order.ID, Target: enums.OrderStatusAccepted, Actor: ActorShopOwner})
	require.ErrorIs(t, err, ErrIllegalTransition)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	conflict, ok := typed.Details().(TransitionConflict)
	require.True(t, ok)
	require.Equal(t, enums.OrderStatusAccepted, conflict.From)
}

func TestTransitionUnknownOrder(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	_, err := svc.Transition(context.Background(), TransitionRequest{OrderID: uuid.New(), Target: enums.OrderStatusAccepted, Actor: ActorShopOwner})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestHistoryNewestFirstAndVisibleOnly(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()
	shopID := uuid.New()
	customerID := uuid.New()
	base := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	oldest := seedOrder(t, conn, shopID, customerID, enums.OrderStatusCompleted, base)
	middle := seedOrder(t, conn, shopID, customerID, enums.OrderStatusReady, base.Add(time.Minute))
	newest := seedOrder(t, conn, shopID, customerID, enums.OrderStatusPending, base.Add(2*time.Minute))
	seedOrder(t, conn, shopID, customerID, enums.OrderStatusPendingPayment, base.Add(3*time.Minute))
	seedOrder(t, conn, shopID, uuid.New(), enums.OrderStatusPending, base.Add(4*time.Minute))

	first, err := svc.ListByCustomer(ctx, customerID, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.Equal(t, newest.ID, first.Orders[0].ID)
	require.Equal(t, middle.ID, first.Orders[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListByCustomer(ctx, customerID, pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	require.Equal(t, oldest.ID, second.Orders[0].ID)
	require.Empty(t, second.NextCursor)

	shopList, err := svc.ListByShop(ctx, shopID, pagination.Params{Limit: 10}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, shopList.Orders, 4)

	ready := enums.OrderStatusReady
	filtered, err := svc.ListByShop(ctx, shopID, pagination.Params{Limit: 10}, ListFilters{Status: &ready})
	require.NoError(t, err)
	require.Len(t, filtered.Orders, 1)
	require.Equal(t, middle.ID, filtered.Orders[0].ID)

	_, err = svc.ListByShop(ctx, shopID, pagination.Params{Cursor: "not-a-cursor"}, ListFilters{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
