package store

import (
	"context"
	"errors"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

var (
	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is a transient write conflict: two writers raced on the
	// same row. Callers retry with bounded attempts; it is never a
	// business-rule rejection.
	ErrConflict = errors.New("transient write conflict")
)

// MutateProductFunc is applied to a copy of the product inside the row's
// transaction scope. Returning an error aborts the transaction and leaves
// the row untouched. The returned audit record is appended atomically
// with the write.
type MutateProductFunc func(p *product.Product) (*AuditRecord, error)

// MutateOrderFunc is the order-row equivalent of MutateProductFunc.
type MutateOrderFunc func(o *order.Order) (*AuditRecord, error)

// ProductStore is the transactional persistence boundary for product
// rows. Mutations on the same row serialize; different rows never block
// each other.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	CreateProduct(ctx context.Context, p *product.Product) error
	MutateProduct(ctx context.Context, id string, fn MutateProductFunc) error
}

// OrderStore is the transactional persistence boundary for order rows.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	CreateOrder(ctx context.Context, o *order.Order, rec *AuditRecord) error
	MutateOrder(ctx context.Context, id string, fn MutateOrderFunc) error
}

// AuditStore serves the append-only audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec *AuditRecord) error
	ListAudit(ctx context.Context, entityType, entityID string) ([]AuditRecord, error)
}

// UserStore is the user directory. Role membership is an explicit lookup
// here rather than a key-naming convention.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error
	UsersWithRole(ctx context.Context, role user.Role) ([]*user.User, error)
}

// AuditPublisher fans committed audit records out to downstream
// consumers (the Kafka producer in production).
type AuditPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}
