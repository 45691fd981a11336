// Package lifecycle validates and applies order status transitions,
// writes the audit trail, and hands resulting events to the notification
// dispatcher.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/notification"
)

// maxAttempts bounds retries on transient write conflicts. Business
// rejections are never retried.
const maxAttempts = 3

// TransitionMetadata is the audit payload for a status change.
type TransitionMetadata struct {
	PreviousStatus order.Status      `json:"previous_status"`
	NewStatus      order.Status      `json:"new_status"`
	RefundRequired bool              `json:"refund_required,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"` // e.g. shipment tracking number
}

type Controller struct {
	orders     store.OrderStore
	products   store.ProductStore
	dispatcher *notification.Dispatcher
}

func NewController(orders store.OrderStore, products store.ProductStore, dispatcher *notification.Dispatcher) *Controller {
	return &Controller{
		orders:     orders,
		products:   products,
		dispatcher: dispatcher,
	}
}

// Create accepts an already-validated checkout command, persists the
// order at PENDING with its creation audit record, and fans a NEW_ORDER
// notification out to the admin roles.
func (c *Controller) Create(ctx context.Context, o *order.Order, actor user.Actor) (*order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	now := time.Now()
	o.Status = order.StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := o.Validate(); err != nil {
		return nil, err
	}

	rec, err := store.NewAuditRecord(actor, store.ActionOrderCreated, store.EntityOrder, o.ID, TransitionMetadata{
		NewStatus: order.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := c.orders.CreateOrder(ctx, o, rec); err != nil {
		return nil, err
	}

	c.notify(ctx, func() error {
		return c.dispatcher.AddForRoles(ctx,
			[]user.Role{user.RoleMasterAdmin, user.RoleBrandAdmin},
			notification.Message{
				Type:    notification.TypeNewOrder,
				Title:   "New order received",
				Message: fmt.Sprintf("Order %s placed for %s", o.ID, o.TotalAmount),
				OrderID: o.ID,
			})
	})

	return o, nil
}

// Transition moves an order to targetStatus if the transition table and
// the actor's authority allow it. The new status and the audit record
// are persisted in the order row's transaction; the buyer notification
// is queued after commit. Transient store conflicts are retried up to
// maxAttempts; business rejections surface immediately.
func (c *Controller) Transition(ctx context.Context, orderID string, target order.Status, actor user.Actor, extra map[string]string) error {
	var buyerID string
	var previous order.Status

	mutate := func(o *order.Order) (*store.AuditRecord, error) {
		if !o.CanTransitionTo(target) {
			return nil, &order.InvalidTransitionError{From: o.Status, To: target}
		}
		if err := c.authorize(ctx, o, target, actor); err != nil {
			return nil, err
		}

		previous = o.Status
		buyerID = o.UserID
		refund := target == order.StatusCancelled && o.RequiresRefund()

		o.Status = target
		o.UpdatedAt = time.Now()

		return store.NewAuditRecord(actor, store.ActionOrderStatusChange, store.EntityOrder, o.ID, TransitionMetadata{
			PreviousStatus: previous,
			NewStatus:      target,
			RefundRequired: refund,
			Extra:          extra,
		})
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = c.orders.MutateOrder(ctx, orderID, mutate)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("transition for order %s failed after %d attempts: %w",
			orderID, maxAttempts, err)
	}
	if errors.Is(err, store.ErrNotFound) {
		return order.ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	c.notify(ctx, func() error {
		return c.dispatcher.AddForUser(ctx, buyerID, notification.Message{
			Type:    notification.TypeOrderStatusChange,
			Title:   "Order status updated",
			Message: fmt.Sprintf("Order %s moved from %s to %s", orderID, previous, target),
			OrderID: orderID,
			Data:    map[string]string{"previous_status": string(previous), "new_status": string(target)},
		})
	})

	return nil
}

// authorize applies the role rules: master admins transition anything, a
// brand admin needs at least one line item owned by their brand, and a
// buyer may only cancel their own still-cancellable order.
func (c *Controller) authorize(ctx context.Context, o *order.Order, target order.Status, actor user.Actor) error {
	switch actor.Role {
	case user.RoleMasterAdmin:
		return nil

	case user.RoleBrandAdmin:
		for _, li := range o.Items {
			p, err := c.products.GetProduct(ctx, li.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			if actor.CanManageBrand(p.BrandID) {
				return nil
			}
		}
		return &user.ForbiddenError{Role: actor.Role, Reason: "no line item belongs to the actor's brand"}

	case user.RoleBuyer:
		if target != order.StatusCancelled {
			return &user.ForbiddenError{Role: actor.Role, Reason: "buyers may only cancel orders"}
		}
		if o.UserID != actor.UserID {
			return &user.ForbiddenError{Role: actor.Role, Reason: "order belongs to another buyer"}
		}
		if !o.CanBeCancelled() {
			return &user.ForbiddenError{Role: actor.Role, Reason: fmt.Sprintf("order in status %s can no longer be cancelled", o.Status)}
		}
		return nil
	}

	return &user.ForbiddenError{Role: actor.Role, Reason: "unknown role"}
}

// notify runs a dispatcher call and logs failures. Notifications are
// advisory; a committed transition is never rolled back because its
// notification could not be queued.
func (c *Controller) notify(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("[Lifecycle] Failed to queue notification: %v", err)
	}
}
