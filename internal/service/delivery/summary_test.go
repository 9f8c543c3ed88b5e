package delivery

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milk-delivery/internal/domain"
)

func reportStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(owner, nil, nil, nil)
	s.load(
		[]domain.Customer{
			{ID: alice, Name: "Alice", Product: domain.ProductBuffalo, Rate: decimal.NewFromInt(70)},
			{ID: carol, Name: "Carol", Product: domain.ProductCow},
			{ID: "cust-dan", Name: "Dan", Product: domain.ProductBuffalo, Rate: decimal.RequireFromString("72.5")},
		},
		[]domain.DeliveryAgent{
			{ID: bob, Name: "Bob"},
			{ID: "agent-eve", Name: "Eve"},
		},
		[]domain.Assignment{
			{ID: "a1", CustomerID: alice, DeliveryAgentID: bob, Date: "2024-01-05", Shift: domain.ShiftMorning, Liters: 2, Delivered: true},
			{ID: "a2", CustomerID: "cust-dan", DeliveryAgentID: bob, Date: "2024-01-05", Shift: domain.ShiftMorning, Liters: 1.5},
			{ID: "a3", CustomerID: carol, DeliveryAgentID: bob, Date: "2024-01-05", Shift: domain.ShiftMorning, Liters: 1, Delivered: true},
			{ID: "a4", CustomerID: carol, DeliveryAgentID: bob, Date: "2024-01-05", Shift: domain.ShiftEvening, Liters: 0.5},
			{ID: "a5", CustomerID: alice, DeliveryAgentID: bob, Date: "2024-01-06", Shift: domain.ShiftMorning, Liters: 2},
			{ID: "a6", CustomerID: alice, DeliveryAgentID: bob, Date: "2024-01-06", Shift: domain.ShiftEvening, Liters: 1},
			{ID: "a7", CustomerID: "ghost", DeliveryAgentID: bob, Date: "2024-01-05", Shift: domain.ShiftMorning, Liters: 9},
			{ID: "a8", CustomerID: alice, DeliveryAgentID: bob, Date: "2024-02-02", Shift: domain.ShiftMorning, Liters: 4},
		},
	)
	return s
}

func TestShiftSummaryPerProduct(t *testing.T) {
	s := reportStore(t)

	got, err := s.ShiftSummary("2024-01-05", domain.ShiftMorning)
	require.NoError(t, err)
	assert.Equal(t, []ProductTotals{
		{Product: domain.ProductBuffalo, Assigned: 3.5, Delivered: 2, Pending: 1.5},
		{Product: domain.ProductCow, Assigned: 1, Delivered: 1, Pending: 0},
	}, got.Products)

	empty, err := s.ShiftSummary("2030-01-01", domain.ShiftEvening)
	require.NoError(t, err)
	require.Len(t, empty.Products, 2)
	assert.Zero(t, empty.Products[0].Assigned)
	assert.Zero(t, empty.Products[1].Pending)
}

func TestShiftSummaryRejectsBadInput(t *testing.T) {
	s := reportStore(t)
	_, err := s.ShiftSummary("yesterday", domain.ShiftMorning)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.ShiftSummary("2024-01-05", "night")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAgentSummaries(t *testing.T) {
	s := reportStore(t)

	got, err := s.AgentSummaries("2024-01-05")
	require.NoError(t, err)
	require.Len(t, got, 2)

	bobSum := got[0]
	assert.Equal(t, "Bob", bobSum.Agent.Name)
	assert.Len(t, bobSum.Assignments, 5)
	assert.Equal(t, 14.0, bobSum.Assigned)
	assert.Equal(t, 3.0, bobSum.Delivered)
	assert.Equal(t, 11.0, bobSum.Pending)
	assert.Equal(t, "Alice", bobSum.Assignments[0].CustomerName)
	assert.Equal(t, domain.ProductBuffalo, bobSum.Assignments[0].Product)

	eve := got[1]
	assert.Equal(t, "Eve", eve.Agent.Name)
	assert.Empty(t, eve.Assignments)
	assert.Zero(t, eve.Assigned)
}

func TestMonthlyBills(t *testing.T) {
	s := reportStore(t)

	got, err := s.MonthlyBills(2024, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 31, got.Days)
	require.Len(t, got.Bills, 3)

	byName := map[string]Bill{}
	for _, b := range got.Bills {
		byName[b.Name] = b
	}
	assert.Equal(t, 3.0, byName["Alice"].DailyLiters)
	assert.Equal(t, "6510", byName["Alice"].Amount.String())
	assert.Equal(t, "60", byName["Carol"].Rate.String())
	assert.Equal(t, "2790", byName["Carol"].Amount.String())
	assert.Equal(t, "3371.25", byName["Dan"].Amount.String())
	assert.Equal(t, "12671.25", got.Total.String())

	feb, err := s.MonthlyBills(2024, 2, "ALI")
	require.NoError(t, err)
	require.Len(t, feb.Bills, 1)
	assert.Equal(t, 29, feb.Days)
	assert.Equal(t, 4.0, feb.Bills[0].DailyLiters)
	assert.Equal(t, "8120", feb.Bills[0].Amount.String())

	before, err := s.MonthlyBills(2023, 12, "")
	require.NoError(t, err)
	for _, b := range before.Bills {
		assert.True(t, b.Amount.IsZero(), b.Name)
	}

	_, err = s.MonthlyBills(2024, 13, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 28, DaysIn(2023, 2))
	assert.Equal(t, 29, DaysIn(2024, 2))
	assert.Equal(t, 30, DaysIn(2024, 4))
	assert.Equal(t, 31, DaysIn(2024, 12))
}

func TestDailySell(t *testing.T) {
	s := reportStore(t)

	got, err := s.DailySell("2024-01-05", "")
	require.NoError(t, err)
	require.Len(t, got, 3)

	carolRow := got[1]
	assert.Equal(t, "Carol", carolRow.Name)
	assert.Equal(t, 1.0, carolRow.Morning.Liters)
	assert.Equal(t, "60", carolRow.Morning.Amount.String())
	assert.Equal(t, 0.5, carolRow.Evening.Liters)
	assert.Equal(t, "30", carolRow.Evening.Amount.String())
	assert.Equal(t, 1.5, carolRow.Total.Liters)
	assert.Equal(t, "90", carolRow.Total.Amount.String())

	filtered, err := s.DailySell("2024-01-05", "dan")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "108.75", filtered[0].Total.Amount.String())
}

func TestBulkSell(t *testing.T) {
	s := reportStore(t)

	got, err := s.BulkSell([]BulkEntry{{CustomerID: alice, Liters: 10}, {CustomerID: carol, Liters: 2.5}})
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 12.5, got.Liters)
	assert.Equal(t, "850", got.Amount.String())

	_, err = s.BulkSell([]BulkEntry{{CustomerID: "nobody", Liters: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.BulkSell([]BulkEntry{{CustomerID: alice, Liters: -1}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPickup(t *testing.T) {
	s := reportStore(t)

	got, err := s.Pickup("2024-01-05", domain.ShiftMorning, map[domain.Product]float64{domain.ProductBuffalo: 5})
	require.NoError(t, err)
	assert.Equal(t, []PickupRow{
		{Product: domain.ProductBuffalo, Picked: 5, Delivered: 2, Remaining: 3},
		{Product: domain.ProductCow, Picked: 0, Delivered: 1, Remaining: 0},
	}, got)

	_, err = s.Pickup("2024-01-05", domain.ShiftMorning, map[domain.Product]float64{"Goat Milk": 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
