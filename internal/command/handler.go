package command

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/guard"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/inventory"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/lifecycle"
)

// Handler orchestrates validated commands through the admission guard,
// the inventory engine, and the lifecycle controller.
type Handler struct {
	guard      guard.Guard
	engine     *inventory.Engine
	controller *lifecycle.Controller
	products   store.ProductStore
}

func NewHandler(g guard.Guard, engine *inventory.Engine, controller *lifecycle.Controller, products store.ProductStore) *Handler {
	return &Handler{
		guard:      g,
		engine:     engine,
		controller: controller,
		products:   products,
	}
}

// ApplyInventoryChange is the direct stock-management command for
// brand and master admins.
func (h *Handler) ApplyInventoryChange(ctx context.Context, cmd ApplyInventoryChange, actor user.Actor) (*inventory.Change, error) {
	if err := h.guard.Allow(ctx, actor.UserID, OpInventory); err != nil {
		return nil, err
	}

	// Brand ownership never changes after creation, so checking it
	// outside the mutation transaction is safe.
	p, err := h.getProduct(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageBrand(p.BrandID) {
		return nil, &user.ForbiddenError{Role: actor.Role, Reason: fmt.Sprintf("product %s belongs to brand %s", p.ID, p.BrandID)}
	}

	return h.engine.Apply(ctx, inventory.ChangeCommand{
		ProductID: cmd.ProductID,
		Operation: cmd.Operation,
		Quantity:  cmd.Quantity,
		Reason:    cmd.Reason,
	}, actor)
}

// PlaceOrder prices the requested lines for the acting buyer, decrements
// stock per line through the engine, and creates the order. If any line
// fails, decrements already applied are compensated with increments
// before the error surfaces.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder, actor user.Actor) (*order.Order, error) {
	if err := h.guard.Allow(ctx, actor.UserID, OpOrder); err != nil {
		return nil, err
	}
	if len(cmd.Lines) == 0 {
		return nil, order.ErrEmptyOrder
	}

	items := make([]order.LineItem, 0, len(cmd.Lines))
	total := decimal.Zero

	var decremented []order.LineItem
	for _, line := range cmd.Lines {
		if line.Quantity < 1 {
			h.compensate(ctx, decremented, actor)
			return nil, fmt.Errorf("%w: product %s", order.ErrInvalidQuantity, line.ProductID)
		}

		p, err := h.getProduct(ctx, line.ProductID)
		if err != nil {
			h.compensate(ctx, decremented, actor)
			return nil, err
		}
		if !p.IsOrderable(line.Quantity) {
			h.compensate(ctx, decremented, actor)
			return nil, &inventory.InsufficientInventoryError{
				ProductID: p.ID,
				Current:   p.Inventory,
				Requested: line.Quantity,
			}
		}

		if _, err := h.engine.Apply(ctx, inventory.ChangeCommand{
			ProductID: line.ProductID,
			Operation: inventory.OpDecrement,
			Quantity:  line.Quantity,
			Reason:    "order placement",
		}, actor); err != nil {
			h.compensate(ctx, decremented, actor)
			return nil, err
		}

		item := order.LineItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: p.CalculatePrice(line.Quantity, actor.Role),
			Variant:   line.Variant,
		}
		decremented = append(decremented, item)
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	o := &order.Order{
		UserID:          actor.UserID,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: cmd.ShippingAddress,
	}
	created, err := h.controller.Create(ctx, o, actor)
	if err != nil {
		h.compensate(ctx, decremented, actor)
		return nil, err
	}
	return created, nil
}

// getProduct looks a product up, translating the storage-level missing
// row into the domain sentinel callers branch on.
func (h *Handler) getProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := h.products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", product.ErrProductNotFound, id)
	}
	return p, err
}

// compensate returns stock claimed by a failed checkout. Failures here
// are logged, not propagated: the original error is what the caller
// needs to see, and each increment is independently audited.
func (h *Handler) compensate(ctx context.Context, items []order.LineItem, actor user.Actor) {
	for _, item := range items {
		if _, err := h.engine.Apply(ctx, inventory.ChangeCommand{
			ProductID: item.ProductID,
			Operation: inventory.OpIncrement,
			Quantity:  item.Quantity,
			Reason:    "order placement rollback",
		}, actor); err != nil {
			log.Printf("[Command] Failed to return %d units to product %s: %v",
				item.Quantity, item.ProductID, err)
		}
	}
}

// TransitionOrder applies an order status transition.
func (h *Handler) TransitionOrder(ctx context.Context, cmd TransitionOrder, actor user.Actor) error {
	if err := h.guard.Allow(ctx, actor.UserID, OpOrder); err != nil {
		return err
	}
	return h.controller.Transition(ctx, cmd.OrderID, cmd.TargetStatus, actor, cmd.Metadata)
}
