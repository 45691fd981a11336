package notification

import (
	"context"
	"time"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

type Type string

const (
	TypeOrderStatusChange Type = "ORDER_STATUS_CHANGE"
	TypeNewOrder          Type = "NEW_ORDER"
	TypeInventoryAlert    Type = "INVENTORY_ALERT"
	TypeSystem            Type = "SYSTEM"
)

const (
	// DefaultTTL is the retention window: a client that never polls
	// within it permanently misses the notification. Delivery is
	// at-most-once, best-effort.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxPerKey caps the list per recipient key; oldest entries
	// are evicted first.
	DefaultMaxPerKey = 100
	// DefaultPollInterval is the interval clients are expected to poll
	// at, passing their last poll time as "since".
	DefaultPollInterval = 30 * time.Second
)

// Notification is a short-lived advisory record. It is mutated only to
// flip the read flag and expires by age.
type Notification struct {
	ID           string            `json:"id"`
	RecipientKey string            `json:"recipient_key"`
	Type         Type              `json:"type"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	OrderID      string            `json:"order_id,omitempty"`
	ProductID    string            `json:"product_id,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Read         bool              `json:"read"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RoleKey returns the recipient key under which role-addressed records
// are stored. Role records are joined in at read time for every current
// holder of the role, trading write cost for read cost.
func RoleKey(role user.Role) string {
	return "role:" + string(role)
}

// Store is the keyed backing for notification records. List returns a
// snapshot, newest first, already pruned of expired entries; readers
// never iterate live mutable lists.
type Store interface {
	Append(ctx context.Context, key string, n Notification) error
	List(ctx context.Context, key string) ([]Notification, error)
	MarkRead(ctx context.Context, key, id string) error
	MarkAllRead(ctx context.Context, key string) error
}
