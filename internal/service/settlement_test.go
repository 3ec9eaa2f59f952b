package service

import (
	"context"
	"errors"
	"testing"

	"distribution-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBalance(t *testing.T, f *fixture, userID int64, want int64) {
	t.Helper()
	got := f.store.balance(userID)
	assert.Truef(t, got.Equal(dec(want)), "balance of %d: got %s, want %d", userID, got, want)
}

func TestPlanCredits(t *testing.T) {
	rate := models.CommissionRate{DeviceType: "smartphone", MarketerRate: dec(1000), AdminRate: dec(500), SuperAdminRate: dec(250)}

	tests := []struct {
		name    string
		h       models.Hierarchy
		payees  []int64
		amounts []int64
		wantErr error
	}{
		{
			name:    "marketer with full chain",
			h:       models.Hierarchy{UserID: 3, Role: models.RoleMarketer, AdminID: ptr(2), SuperAdminID: ptr(1)},
			payees:  []int64{3, 2, 1},
			amounts: []int64{2000, 1000, 500},
		},
		{
			name:    "marketer without admin",
			h:       models.Hierarchy{UserID: 3, Role: models.RoleMarketer},
			payees:  []int64{3},
			amounts: []int64{2000},
		},
		{
			name:    "admin selling directly",
			h:       models.Hierarchy{UserID: 2, Role: models.RoleAdmin, AdminID: ptr(9)},
			payees:  []int64{2},
			amounts: []int64{2000},
		},
		{
			name:    "superadmin selling directly",
			h:       models.Hierarchy{UserID: 1, Role: models.RoleSuperAdmin},
			payees:  []int64{1},
			amounts: []int64{2000},
		},
		{
			name:    "dealer",
			h:       models.Hierarchy{UserID: 10, Role: models.RoleDealer},
			wantErr: models.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits, err := PlanCredits(tt.h, rate, 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, credits, len(tt.payees))
			for i, c := range credits {
				assert.Equal(t, tt.payees[i], c.PayeeID)
				assert.Equal(t, 2, c.Quantity)
				assert.True(t, c.Amount.Equal(dec(tt.amounts[i])), "credit %d amount %s", i, c.Amount)
			}
		})
	}
}

func TestConfirmCreditsThreeTiersForMarketer(t *testing.T) {
	f := newFixture(t)
	f.store.addUnits(phoneID, 3)
	reservationID, orderID := f.pickupOrder(t, marketerID, 2)

	res, err := f.orders.Confirm(context.Background(), orderID)
	require.NoError(t, err)

	require.Len(t, res.Settlement.Credits, 3)
	assertBalance(t, f, marketerID, 2000)
	assertBalance(t, f, adminID, 1000)
	assertBalance(t, f, superAdminID, 500)

	order := f.store.order(orderID)
	assert.Equal(t, models.OrderStatusReleasedConfirmed, order.Status)
	assert.True(t, order.CommissionPaid)
	require.NotNil(t, order.ConfirmedAt)
	assert.Equal(t, fixedNow, *order.ConfirmedAt)
	require.NotNil(t, order.ProductID, "product is backfilled from the reservation")
	assert.Equal(t, phoneID, *order.ProductID)

	rec, ok := f.store.state.sales[orderID]
	require.True(t, ok)
	assert.Equal(t, 2, rec.Quantity)
	assert.True(t, rec.GrossProfit.Equal(dec(60000)))

	assert.Equal(t, models.ReservationStatusSold, f.store.reservation(reservationID).Status)
	units := f.store.unitsOf(reservationID)
	require.Len(t, units, 2)
	for _, u := range units {
		assert.Equal(t, models.UnitStatusSold, u.Status)
	}
	assert.Equal(t, 1, f.store.countUnits(phoneID, models.UnitStatusAvailable))

	require.Len(t, f.events.confirmed, 1)
	assert.Equal(t, orderID, f.events.confirmed[0].OrderID)
	assert.Len(t, f.events.confirmed[0].Credits, 3)
}

func TestConfirmCreditsOnlySelfForAdminSeller(t *testing.T) {
	f := newFixture(t)
	orderID := f.directOrder(adminID, phoneID, 3, "pos")

	res, err := f.orders.Confirm(context.Background(), orderID)
	require.NoError(t, err)

	require.Len(t, res.Settlement.Credits, 1)
	assert.Equal(t, models.RoleMarketer, res.Settlement.Credits[0].Tier)
	assertBalance(t, f, adminID, 3000)
	assertBalance(t, f, superAdminID, 0)
	assert.Equal(t, []int64{adminID}, f.store.credits)
}

func TestConfirmTwiceNeverCreditsTwice(t *testing.T) {
	f := newFixture(t)
	f.store.addUnits(phoneID, 1)
	_, orderID := f.pickupOrder(t, marketerID, 1)

	_, err := f.orders.Confirm(context.Background(), orderID)
	require.NoError(t, err)

	_, err = f.orders.Confirm(context.Background(), orderID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	assertBalance(t, f, marketerID, 1000)
	assertBalance(t, f, adminID, 500)
	assertBalance(t, f, superAdminID, 250)
	assert.Len(t, f.store.credits, 3)
}

func TestConfirmRollsBackWhenThirdTierCreditFails(t *testing.T) {
	f := newFixture(t)
	f.store.addUnits(phoneID, 2)
	reservationID, orderID := f.pickupOrder(t, marketerID, 2)
	f.store.creditErr[superAdminID] = errors.New("wallet store unavailable")

	_, err := f.orders.Confirm(context.Background(), orderID)
	require.Error(t, err)

	assertBalance(t, f, marketerID, 0)
	assertBalance(t, f, adminID, 0)
	assertBalance(t, f, superAdminID, 0)

	order := f.store.order(orderID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.False(t, order.CommissionPaid)
	assert.Nil(t, order.ProductID, "backfill is rolled back too")
	assert.NotContains(t, f.store.state.sales, orderID)

	assert.Equal(t, models.ReservationStatusPending, f.store.reservation(reservationID).Status)
	for _, u := range f.store.unitsOf(reservationID) {
		assert.Equal(t, models.UnitStatusReserved, u.Status)
	}
	assert.Empty(t, f.events.confirmed)

	delete(f.store.creditErr, superAdminID)
	_, err = f.orders.Confirm(context.Background(), orderID)
	require.NoError(t, err, "a rolled back confirmation can be retried")
	assertBalance(t, f, superAdminID, 500)
}

func TestConfirmOnNoCommissionPlatform(t *testing.T) {
	f := newFixture(t)
	orderID := f.directOrder(marketerID, phoneID, 2, " Internal ")

	res, err := f.orders.Confirm(context.Background(), orderID)
	require.NoError(t, err)

	assert.Equal(t, SkipNoCommission, res.Settlement.Skipped)
	assert.Empty(t, res.Settlement.Credits)
	assert.Empty(t, f.store.credits)
	assertBalance(t, f, marketerID, 0)

	order := f.store.order(orderID)
	assert.Equal(t, models.OrderStatusReleasedConfirmed, order.Status)
	assert.True(t, order.CommissionPaid)
	rec, ok := f.store.state.sales[orderID]
	require.True(t, ok)
	assert.True(t, rec.GrossProfit.Equal(dec(60000)))
}

func TestConfirmSkipsSettlementWhenAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	orderID := f.store.addOrder(models.Order{
		MarketerID:     marketerID,
		ProductID:      ptr(phoneID),
		DeviceCount:    1,
		CommissionPaid: true,
	})

	res, err := f.orders.Confirm(context.Background(), orderID)
	require.NoError(t, err)

	assert.Equal(t, SkipAlreadyPaid, res.Settlement.Skipped)
	assert.Empty(t, f.store.credits)
	assert.NotContains(t, f.store.state.sales, orderID)
	assert.Equal(t, models.OrderStatusReleasedConfirmed, f.store.order(orderID).Status)
}

func TestConfirmFailsForUnknownDeviceType(t *testing.T) {
	f := newFixture(t)
	orderID := f.directOrder(marketerID, watchID, 1, "pos")

	_, err := f.orders.Confirm(context.Background(), orderID)
	assert.ErrorIs(t, err, models.ErrUnknownDeviceType)
	assert.Equal(t, models.OrderStatusPending, f.store.order(orderID).Status)
	assert.False(t, f.store.order(orderID).CommissionPaid)
}

func TestConfirmFailsWithoutProductOrReservation(t *testing.T) {
	f := newFixture(t)
	orderID := f.store.addOrder(models.Order{MarketerID: marketerID, DeviceCount: 1})

	_, err := f.orders.Confirm(context.Background(), orderID)
	assert.ErrorIs(t, err, models.ErrUnresolvableProduct)
}
