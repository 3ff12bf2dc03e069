package items

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

type stubOwners struct {
	owners map[uuid.UUID]uuid.UUID
}

func (s stubOwners) EnsureOwner(_ context.Context, shopID, userID uuid.UUID) (*models.Shop, error) {
	owner, ok := s.owners[shopID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	if owner != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop belongs to another owner")
	}
	return &models.Shop{ID: shopID, OwnerID: owner}, nil
}

type fixture struct {
	conn    *gorm.DB
	svc     Service
	shopID  uuid.UUID
	ownerID uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := "file:items_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))

	shopID, ownerID := uuid.New(), uuid.New()
	svc, err := NewService(NewRepository(conn), stubOwners{owners: map[uuid.UUID]uuid.UUID{shopID: ownerID}}, nil)
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, shopID: shopID, ownerID: ownerID}
}

func TestParsePriceCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "4.50", want: 450},
		{in: "10", want: 1000},
		{in: " 0.99 ", want: 99},
		{in: "0", want: 0},
		{in: "1.999", wantErr: true},
		{in: "-1.00", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePriceCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParsePriceCents(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParsePriceCents(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePriceCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if FormatPrice(1083) != "10.83" {
		t.Fatalf("unexpected format %q", FormatPrice(1083))
	}
}

func TestCreateRequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), uuid.New(), f.shopID, CreateItemInput{
		Name: "Latte", Price: "4.50", StockPolicy: enums.Unlimited(),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestBuyerListingExcludesHiddenAndDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	latte, err := f.svc.Create(ctx, f.ownerID, f.shopID, CreateItemInput{Name: "Latte", Price: "4.50", StockPolicy: enums.Unlimited()})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.ownerID, f.shopID, CreateItemInput{Name: "Secret Menu", Price: "6.00", StockPolicy: enums.Hidden()})
	require.NoError(t, err)
	scone, err := f.svc.Create(ctx, f.ownerID, f.shopID, CreateItemInput{Name: "Scone", Price: "3.25", StockPolicy: enums.Tracked(4)})
	require.NoError(t, err)
	require.Equal(t, int64(325), scone.PriceCents)
	require.NotNil(t, scone.Available)
	require.Equal(t, 4, *scone.Available)

	require.NoError(t, f.svc.Delete(ctx, f.ownerID, scone.ID))

	buyer, err := f.svc.ListForBuyer(ctx, f.shopID)
	require.NoError(t, err)
	require.Len(t, buyer, 1)
	require.Equal(t, latte.ID, buyer[0].ID)

	owner, err := f.svc.ListForOwner(ctx, f.ownerID, f.shopID)
	require.NoError(t, err)
	require.Len(t, owner, 2)

	_, err = f.svc.Update(ctx, f.ownerID, scone.ID, UpdateItemInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdatePolicyCannotDropBelowHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.ownerID, f.shopID, CreateItemInput{Name: "Croissant", Price: "3.00", StockPolicy: enums.Tracked(5)})
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Item{}).Where("id = ?", created.ID).Update("held_qty", 3).Error)

	low := enums.Tracked(2)
	_, err = f.svc.Update(ctx, f.ownerID, created.ID, UpdateItemInput{StockPolicy: &low})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	ok := enums.Tracked(8)
	price := "3.50"
	updated, err := f.svc.Update(ctx, f.ownerID, created.ID, UpdateItemInput{StockPolicy: &ok, Price: &price})
	require.NoError(t, err)
	require.Equal(t, int64(350), updated.PriceCents)
	require.Equal(t, 8, *updated.StockCount)
	require.Equal(t, 5, *updated.Available)

	var row models.Item
	require.NoError(t, f.conn.First(&row, "id = ?", created.ID).Error)
	require.Equal(t, int64(1), row.Version)
}

func TestUpdateRejectsBadPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.ownerID, f.shopID, CreateItemInput{Name: "Mocha", Price: "5.00", StockPolicy: enums.Unlimited()})
	require.NoError(t, err)

	bad := "5.001"
	_, err = f.svc.Update(ctx, f.ownerID, created.ID, UpdateItemInput{Price: &bad})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
