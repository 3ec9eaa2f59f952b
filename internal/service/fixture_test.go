package service

import (
	"context"
	"testing"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	superAdminID int64 = 1
	adminID      int64 = 2
	marketerID   int64 = 3
	marketer2ID  int64 = 4
	dealerID     int64 = 10
	farDealerID  int64 = 11

	phoneID  int64 = 20
	tabletID int64 = 21
	watchID  int64 = 22
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store        *fakeStore
	events       *fakePublisher
	cache        *fakeCache
	rates        *RateTable
	settler      *Settler
	reservations *ReservationService
	orders       *OrderService
	bulk         *BulkService
	inventory    *InventoryService
}

func ptr(v int64) *int64 { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	util.SetLogger(zap.NewNop())

	st := newFakeStore()
	st.addUser(models.User{ID: superAdminID, Name: "Sade", Role: models.RoleSuperAdmin, Location: "Lagos"})
	st.addUser(models.User{ID: adminID, Name: "Ade", Role: models.RoleAdmin, Location: "Lagos", SuperAdminID: ptr(superAdminID)})
	st.addUser(models.User{ID: marketerID, Name: "Tolu", Role: models.RoleMarketer, Location: " lagos ", AdminID: ptr(adminID)})
	st.addUser(models.User{ID: marketer2ID, Name: "Kemi", Role: models.RoleMarketer, Location: "Lagos", AdminID: ptr(adminID)})
	st.addUser(models.User{ID: dealerID, Name: "Phone Hub", Role: models.RoleDealer, Location: "Lagos"})
	st.addUser(models.User{ID: farDealerID, Name: "North Phones", Role: models.RoleDealer, Location: "Abuja"})

	st.addProduct(models.Product{
		ID: phoneID, DealerID: dealerID, Name: "Phone X", DeviceType: "smartphone",
		CostPrice: decimal.NewFromInt(100000), SellingPrice: decimal.NewFromInt(130000),
	})
	st.addProduct(models.Product{
		ID: tabletID, DealerID: farDealerID, Name: "Tab S", DeviceType: "tablet",
		CostPrice: decimal.NewFromInt(80000), SellingPrice: decimal.NewFromInt(95000),
	})
	st.addProduct(models.Product{
		ID: watchID, DealerID: dealerID, Name: "Watch 2", DeviceType: "watch",
		CostPrice: decimal.NewFromInt(20000), SellingPrice: decimal.NewFromInt(26000),
	})

	st.state.rates = []models.CommissionRate{
		{DeviceType: "smartphone", Version: 1, MarketerRate: decimal.NewFromInt(1000), AdminRate: decimal.NewFromInt(500), SuperAdminRate: decimal.NewFromInt(250)},
		{DeviceType: "tablet", Version: 1, MarketerRate: decimal.NewFromInt(800), AdminRate: decimal.NewFromInt(400), SuperAdminRate: decimal.NewFromInt(200)},
	}

	f := &fixture{store: st, events: &fakePublisher{}, cache: newFakeCache()}
	f.rates = NewRateTable(st, nil, time.Minute)
	f.settler = NewSettler(st, f.rates, "internal")
	f.reservations = NewReservationService(st, f.events, 48*time.Hour, 50)
	f.reservations.now = func() time.Time { return fixedNow }
	f.orders = NewOrderService(st, f.settler, f.reservations, f.events)
	f.orders.now = func() time.Time { return fixedNow }
	f.bulk = NewBulkService(st, f.orders, f.cache, 100, time.Hour)
	f.inventory = NewInventoryService(st)
	return f
}

// pickupOrder claims quantity phones for seller and originates a pending order against the reservation
func (f *fixture) pickupOrder(t *testing.T, seller int64, quantity int) (reservationID, orderID int64) {
	t.Helper()
	res, err := f.reservations.CreatePickup(context.Background(), CreatePickupRequest{
		MarketerID: seller,
		DealerID:   dealerID,
		ProductID:  phoneID,
		Quantity:   quantity,
	})
	require.NoError(t, err)

	orderID = f.store.addOrder(models.Order{
		MarketerID:      seller,
		ReservationID:   ptr(res.Reservation.ID),
		DeviceCount:     quantity,
		TotalSoldAmount: decimal.NewFromInt(int64(130000 * quantity)),
		ProfitPerDevice: decimal.NewFromInt(30000),
		CustomerName:    "Customer",
		PaymentPlatform: "bank_transfer",
	})
	return res.Reservation.ID, orderID
}

// directOrder originates a pending order straight against a product, with no reservation
func (f *fixture) directOrder(seller, productID int64, quantity int, platform string) int64 {
	return f.store.addOrder(models.Order{
		MarketerID:      seller,
		ProductID:       ptr(productID),
		DeviceCount:     quantity,
		PaymentPlatform: platform,
	})
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
