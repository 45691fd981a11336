package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one line item")
	ErrInvalidQuantity   = errors.New("line item quantity must be at least 1")
	ErrTotalMismatch     = errors.New("total amount does not match line items")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusPreparing Status = "PREPARING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// LineItem references a product read-only; the order never owns the
// product row.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Variant   string          `json:"variant,omitempty"`
}

// Subtotal returns unit price times quantity for the line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Address struct {
	Recipient  string `json:"recipient"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is never physically deleted; cancellation is a terminal status,
// not a row removal.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	Items           []LineItem      `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress Address         `json:"shipping_address"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CanTransitionTo checks if the order can transition to the target status.
// Never returns an error; unknown states simply have no outgoing edges.
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// CanBeCancelled reports whether the order is still in a cancellable
// state (nothing has shipped yet).
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case StatusPending, StatusPaid, StatusPreparing:
		return true
	}
	return false
}

// RequiresRefund reports whether cancelling now would need a refund:
// payment has been captured but nothing has shipped.
func (o *Order) RequiresRefund() bool {
	return o.Status == StatusPaid || o.Status == StatusPreparing
}

// Validate enforces the creation-time invariants: at least one line,
// positive quantities, and TotalAmount equal to the sum of line
// subtotals. The total is not recomputed after creation.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	sum := decimal.Zero
	for _, li := range o.Items {
		if li.Quantity < 1 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, li.ProductID)
		}
		sum = sum.Add(li.Subtotal())
	}
	if !sum.Equal(o.TotalAmount) {
		return fmt.Errorf("%w: lines sum to %s, total is %s", ErrTotalMismatch, sum, o.TotalAmount)
	}
	return nil
}

// InvalidTransitionError carries the current and requested status so the
// caller can explain the rejection to an end user.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
