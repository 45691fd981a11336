package notification

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

// Message is the write-trigger shape handed in by the lifecycle
// controller and the low-stock policy.
type Message struct {
	Type      Type
	Title     string
	Message   string
	OrderID   string
	ProductID string
	Data      map[string]string
}

// Dispatcher fans notifications out to recipient keys and serves the
// polling read side. It is a pull system: no push, no retry, no delivery
// guarantee beyond the retention window.
type Dispatcher struct {
	store Store
	now   func() time.Time
}

func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{store: store, now: time.Now}
}

func (d *Dispatcher) build(key string, msg Message) Notification {
	return Notification{
		ID:           uuid.New().String(),
		RecipientKey: key,
		Type:         msg.Type,
		Title:        msg.Title,
		Message:      msg.Message,
		OrderID:      msg.OrderID,
		ProductID:    msg.ProductID,
		Data:         msg.Data,
		CreatedAt:    d.now(),
	}
}

// AddForUser stores one record addressed to a single user.
func (d *Dispatcher) AddForUser(ctx context.Context, userID string, msg Message) error {
	return d.store.Append(ctx, userID, d.build(userID, msg))
}

// AddForUsers stores one record per target user.
func (d *Dispatcher) AddForUsers(ctx context.Context, userIDs []string, msg Message) error {
	for _, id := range userIDs {
		if err := d.store.Append(ctx, id, d.build(id, msg)); err != nil {
			return err
		}
	}
	return nil
}

// AddForRoles stores one record per role key. Every current holder of
// the role sees it at read time; membership is not resolved at write
// time.
func (d *Dispatcher) AddForRoles(ctx context.Context, roles []user.Role, msg Message) error {
	for _, role := range roles {
		key := RoleKey(role)
		if err := d.store.Append(ctx, key, d.build(key, msg)); err != nil {
			return err
		}
	}
	return nil
}

// dedupeKey collapses repeated events: a notification is identified by
// its type plus the linked entity, falling back to the message text when
// no entity is linked.
func dedupeKey(n Notification) string {
	entity := n.OrderID
	if entity == "" {
		entity = n.ProductID
	}
	if entity == "" {
		entity = n.Message
	}
	return string(n.Type) + "|" + entity
}

// merged returns the user's own records joined with their role's
// records, newest first, de-duplicated.
func (d *Dispatcher) merged(ctx context.Context, userID string, role user.Role) ([]Notification, error) {
	own, err := d.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := own
	if role != "" {
		shared, err := d.store.List(ctx, RoleKey(role))
		if err != nil {
			return nil, err
		}
		merged = append(merged, shared...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, n := range merged {
		key := dedupeKey(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out, nil
}

// Notifications serves a poll. A non-zero since filters to records newer
// than the caller's last successful poll.
func (d *Dispatcher) Notifications(ctx context.Context, userID string, role user.Role, since time.Time) ([]Notification, error) {
	merged, err := d.merged(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return merged, nil
	}
	out := make([]Notification, 0, len(merged))
	for _, n := range merged {
		if n.CreatedAt.After(since) {
			out = append(out, n)
		}
	}
	return out, nil
}

// UnreadCount counts unread records after the same merge and
// de-duplication as Notifications.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string, role user.Role) (int, error) {
	merged, err := d.merged(ctx, userID, role)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range merged {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkAsRead flips the read flag. Marking an already-read or unknown id
// is a no-op, not an error.
func (d *Dispatcher) MarkAsRead(ctx context.Context, recipientKey, notificationID string) error {
	return d.store.MarkRead(ctx, recipientKey, notificationID)
}

// MarkAllAsRead marks the user's own records and, when a role is given,
// the role's shared records.
func (d *Dispatcher) MarkAllAsRead(ctx context.Context, userID string, role user.Role) error {
	if err := d.store.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	if role != "" {
		return d.store.MarkAllRead(ctx, RoleKey(role))
	}
	return nil
}
