package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(status Status) *Order {
	return &Order{
		ID:     "order-1",
		UserID: "user-1",
		Status: status,
		Items: []LineItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00")},
			{ProductID: "prod-2", Quantity: 1, UnitPrice: decimal.RequireFromString("30.00")},
		},
		TotalAmount: decimal.RequireFromString("130.00"),
	}
}

// ============================================
// Transition Table Tests
// ============================================

func TestOrder_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusPaid, StatusPreparing, StatusShipped, StatusDelivered, StatusCancelled}

	allowed := map[Status][]Status{
		StatusPending:   {StatusPaid, StatusCancelled},
		StatusPaid:      {StatusPreparing, StatusCancelled},
		StatusPreparing: {StatusShipped, StatusCancelled},
		StatusShipped:   {StatusDelivered},
		StatusDelivered: {},
		StatusCancelled: {},
	}

	for from, targets := range allowed {
		ok := make(map[Status]bool)
		for _, to := range targets {
			ok[to] = true
		}
		o := newTestOrder(from)
		for _, to := range all {
			assert.Equal(t, ok[to], o.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrder_CanTransitionTo_SelfTransitionRejected(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPaid, StatusPreparing, StatusShipped} {
		o := newTestOrder(s)
		assert.False(t, o.CanTransitionTo(s), "%s -> %s should be rejected", s, s)
	}
}

func TestOrder_CanBeCancelled(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusPaid, true},
		{StatusPreparing, true},
		{StatusShipped, false},
		{StatusDelivered, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		o := newTestOrder(tt.status)
		assert.Equal(t, tt.want, o.CanBeCancelled(), "status %s", tt.status)
	}
}

func TestOrder_RequiresRefund(t *testing.T) {
	assert.False(t, newTestOrder(StatusPending).RequiresRefund())
	assert.True(t, newTestOrder(StatusPaid).RequiresRefund())
	assert.True(t, newTestOrder(StatusPreparing).RequiresRefund())
	assert.False(t, newTestOrder(StatusShipped).RequiresRefund())
}

// ============================================
// Validation Tests
// ============================================

func TestOrder_Validate(t *testing.T) {
	t.Run("valid order", func(t *testing.T) {
		require.NoError(t, newTestOrder(StatusPending).Validate())
	})

	t.Run("empty order", func(t *testing.T) {
		o := newTestOrder(StatusPending)
		o.Items = nil
		assert.ErrorIs(t, o.Validate(), ErrEmptyOrder)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		o := newTestOrder(StatusPending)
		o.Items[0].Quantity = 0
		assert.ErrorIs(t, o.Validate(), ErrInvalidQuantity)
	})

	t.Run("total mismatch", func(t *testing.T) {
		o := newTestOrder(StatusPending)
		o.TotalAmount = decimal.RequireFromString("129.99")
		assert.ErrorIs(t, o.Validate(), ErrTotalMismatch)
	})
}

func TestLineItem_Subtotal(t *testing.T) {
	item := LineItem{ProductID: "prod-1", Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, item.Subtotal().Equal(decimal.RequireFromString("59.97")))
}

// ============================================
// InvalidTransitionError Tests
// ============================================

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{From: StatusShipped, To: StatusCancelled}
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "SHIPPED")
	assert.Contains(t, err.Error(), "CANCELLED")
}
