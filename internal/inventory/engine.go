// Package inventory applies audited, atomic stock mutations to product
// rows. All inventory writes in the system go through the Engine.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
)

var (
	ErrInvalidOperation      = errors.New("unknown inventory operation")
	ErrNegativeQuantity      = errors.New("quantity must not be negative")
	ErrNegativeInventory     = errors.New("inventory cannot become negative")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

type Operation string

const (
	OpSet       Operation = "SET"
	OpIncrement Operation = "INCREMENT"
	OpDecrement Operation = "DECREMENT"
)

// maxAttempts bounds retries on transient write conflicts. Business
// rejections are never retried.
const maxAttempts = 3

// InsufficientInventoryError reports a decrement that would drive stock
// below zero, with enough detail for the caller to explain it.
type InsufficientInventoryError struct {
	ProductID string
	Current   int
	Requested int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %s: have %d, requested %d",
		e.ProductID, e.Current, e.Requested)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

// ChangeCommand is a single validated inventory mutation.
type ChangeCommand struct {
	ProductID string    `json:"product_id"`
	Operation Operation `json:"operation"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason,omitempty"`
}

// Change reports the applied mutation.
type Change struct {
	ProductID         string         `json:"product_id"`
	PreviousInventory int            `json:"previous_inventory"`
	NewInventory      int            `json:"new_inventory"`
	PreviousStatus    product.Status `json:"previous_status"`
	NewStatus         product.Status `json:"new_status"`
}

// ChangeMetadata is the audit payload written with every successful
// mutation. The low-stock policy consumer decodes it back from the audit
// stream.
type ChangeMetadata struct {
	Operation         Operation      `json:"operation"`
	Quantity          int            `json:"quantity"`
	Reason            string         `json:"reason,omitempty"`
	PreviousInventory int            `json:"previous_inventory"`
	NewInventory      int            `json:"new_inventory"`
	PreviousStatus    product.Status `json:"previous_status"`
	NewStatus         product.Status `json:"new_status"`
	SKU               string         `json:"sku"`
	BrandID           string         `json:"brand_id"`
}

type Engine struct {
	products store.ProductStore
}

func NewEngine(products store.ProductStore) *Engine {
	return &Engine{products: products}
}

// Apply performs one mutation inside the product row's transaction
// scope. The status recommendation from ShouldUpdateStatus is persisted
// atomically with the inventory write, and exactly one audit record is
// appended in the same transaction. Transient store conflicts are
// retried up to maxAttempts; business rejections surface immediately.
func (e *Engine) Apply(ctx context.Context, cmd ChangeCommand, actor user.Actor) (*Change, error) {
	switch cmd.Operation {
	case OpSet, OpIncrement, OpDecrement:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, cmd.Operation)
	}
	if cmd.Quantity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeQuantity, cmd.Quantity)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var change Change
		err := e.products.MutateProduct(ctx, cmd.ProductID, func(p *product.Product) (*store.AuditRecord, error) {
			newInventory, err := e.compute(p, cmd)
			if err != nil {
				return nil, err
			}

			previousInventory := p.Inventory
			previousStatus := p.Status

			p.Inventory = newInventory
			p.Status = p.ShouldUpdateStatus()
			p.UpdatedAt = time.Now()

			change = Change{
				ProductID:         p.ID,
				PreviousInventory: previousInventory,
				NewInventory:      newInventory,
				PreviousStatus:    previousStatus,
				NewStatus:         p.Status,
			}

			return store.NewAuditRecord(actor, store.ActionInventoryChange, store.EntityProduct, p.ID, ChangeMetadata{
				Operation:         cmd.Operation,
				Quantity:          cmd.Quantity,
				Reason:            cmd.Reason,
				PreviousInventory: previousInventory,
				NewInventory:      newInventory,
				PreviousStatus:    previousStatus,
				NewStatus:         p.Status,
				SKU:               p.SKU,
				BrandID:           p.BrandID,
			})
		})
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return &change, nil
	}

	return nil, fmt.Errorf("inventory update for product %s failed after %d attempts: %w",
		cmd.ProductID, maxAttempts, lastErr)
}

// compute derives the target inventory. The decrement check runs here,
// inside the transaction, against the freshly re-read value.
func (e *Engine) compute(p *product.Product, cmd ChangeCommand) (int, error) {
	var newInventory int
	switch cmd.Operation {
	case OpSet:
		newInventory = cmd.Quantity
	case OpIncrement:
		newInventory = p.Inventory + cmd.Quantity
	case OpDecrement:
		newInventory = p.Inventory - cmd.Quantity
		if newInventory < 0 {
			return 0, &InsufficientInventoryError{
				ProductID: p.ID,
				Current:   p.Inventory,
				Requested: cmd.Quantity,
			}
		}
	}
	if newInventory < 0 {
		return 0, fmt.Errorf("%w: computed %d", ErrNegativeInventory, newInventory)
	}
	return newInventory, nil
}
