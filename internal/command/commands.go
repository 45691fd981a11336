package command

import (
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/inventory"
)

// Guarded mutation operation names, used as rate-limit buckets.
const (
	OpInventory = "inventory"
	OpOrder     = "order"
)

// ApplyInventoryChange adjusts a product's stock level.
type ApplyInventoryChange struct {
	ProductID string              `json:"product_id"`
	Operation inventory.Operation `json:"operation"`
	Quantity  int                 `json:"quantity"`
	Reason    string              `json:"reason,omitempty"`
}

// PlaceOrderLine is one requested line of a checkout.
type PlaceOrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

// PlaceOrder creates an order for the acting buyer.
type PlaceOrder struct {
	Lines           []PlaceOrderLine `json:"lines"`
	ShippingAddress order.Address    `json:"shipping_address"`
}

// TransitionOrder moves an order to a target status.
type TransitionOrder struct {
	OrderID      string            `json:"order_id"`
	TargetStatus order.Status      `json:"target_status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
