package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

var ErrProductNotFound = errors.New("product not found")

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusInactive   Status = "INACTIVE"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

// Bulk discount tiers. Only the highest applicable tier applies; the buyer
// discount is applied multiplicatively on top of the tier price, not added
// to it. This ordering is load-bearing: swapping it changes the rounded
// result.
var (
	tier100Multiplier = decimal.RequireFromString("0.85") // >= 100 units: 15% off
	tier50Multiplier  = decimal.RequireFromString("0.90") // >= 50 units: 10% off
	tier10Multiplier  = decimal.RequireFromString("0.95") // >= 10 units: 5% off
	buyerMultiplier   = decimal.RequireFromString("0.98") // additional 2% for buyers
)

// Product is the catalog aggregate. Inventory is mutated exclusively
// through the inventory engine; everything here is a pure rule.
type Product struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku"`
	BrandID   string          `json:"brand_id"`
	Name      string          `json:"name"`
	Inventory int             `json:"inventory"`
	Status    Status          `json:"status"`
	BasePrice decimal.Decimal `json:"base_price"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsOrderable reports whether the requested quantity can currently be
// ordered: the product must be active and hold enough stock.
func (p *Product) IsOrderable(quantity int) bool {
	return p.Status == StatusActive && quantity > 0 && p.Inventory >= quantity
}

// CalculatePrice returns the discounted unit price for the given order
// quantity and buyer role, rounded to 2 decimal places.
func (p *Product) CalculatePrice(quantity int, role user.Role) decimal.Decimal {
	price := p.BasePrice
	switch {
	case quantity >= 100:
		price = price.Mul(tier100Multiplier)
	case quantity >= 50:
		price = price.Mul(tier50Multiplier)
	case quantity >= 10:
		price = price.Mul(tier10Multiplier)
	}
	if role == user.RoleBuyer {
		price = price.Mul(buyerMultiplier)
	}
	return price.Round(2)
}

// ShouldUpdateStatus returns the status the product ought to have given
// its current inventory. This is a recommendation only; persisting it is
// the caller's job, and the inventory engine does so atomically with
// every inventory write.
func (p *Product) ShouldUpdateStatus() Status {
	switch {
	case p.Inventory == 0 && p.Status == StatusActive:
		return StatusOutOfStock
	case p.Inventory > 0 && p.Status == StatusOutOfStock:
		return StatusActive
	}
	return p.Status
}
