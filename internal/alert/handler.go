// Package alert implements the low-stock notification policy. It is a
// consumer of the audit stream, not part of the inventory engine: the
// engine records before/after values, and this handler decides whether
// that change warrants an alert.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/inventory"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/notification"
)

// DefaultLowStockThreshold is used when no threshold is configured.
const DefaultLowStockThreshold = 10

// Handler processes audit records from Kafka and dispatches
// INVENTORY_ALERT notifications when stock crosses below the threshold.
// Master admins get the shared role feed; brand admins of the owning
// brand get per-user copies resolved through the user directory, so
// admins of unrelated brands are not alerted. Without a directory the
// brand-admin role feed is used instead.
type Handler struct {
	dispatcher *notification.Dispatcher
	users      store.UserStore
	threshold  int
}

func NewHandler(dispatcher *notification.Dispatcher, users store.UserStore, threshold int) *Handler {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &Handler{dispatcher: dispatcher, users: users, threshold: threshold}
}

// HandleEvent processes one message from the audit topic.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var rec store.AuditRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		log.Printf("[Alert] Failed to unmarshal audit record: %v", err)
		return err
	}

	if rec.Action != store.ActionInventoryChange {
		return nil
	}
	return h.handleInventoryChange(ctx, rec)
}

func (h *Handler) handleInventoryChange(ctx context.Context, rec store.AuditRecord) error {
	var meta inventory.ChangeMetadata
	if err := json.Unmarshal(rec.Metadata, &meta); err != nil {
		log.Printf("[Alert] Failed to unmarshal change metadata for %s: %v", rec.EntityID, err)
		return err
	}

	// Alert only on the downward crossing, so a product lingering below
	// the threshold does not re-alert on every mutation.
	if meta.PreviousInventory < h.threshold || meta.NewInventory >= h.threshold {
		return nil
	}

	log.Printf("[Alert] Product %s (%s) dropped to %d units (threshold %d)",
		rec.EntityID, meta.SKU, meta.NewInventory, h.threshold)

	msg := notification.Message{
		Type:      notification.TypeInventoryAlert,
		Title:     "Low stock",
		Message:   fmt.Sprintf("Product %s is down to %d units", meta.SKU, meta.NewInventory),
		ProductID: rec.EntityID,
		Data: map[string]string{
			"sku":      meta.SKU,
			"brand_id": meta.BrandID,
		},
	}

	if err := h.dispatcher.AddForRoles(ctx, []user.Role{user.RoleMasterAdmin}, msg); err != nil {
		return err
	}

	admins, err := h.brandAdmins(ctx, meta.BrandID)
	if err != nil {
		log.Printf("[Alert] Failed to resolve brand admins for %s: %v", meta.BrandID, err)
	}
	if admins == nil {
		return h.dispatcher.AddForRoles(ctx, []user.Role{user.RoleBrandAdmin}, msg)
	}
	return h.dispatcher.AddForUsers(ctx, admins, msg)
}

// brandAdmins resolves the ids of active brand admins for one brand. A
// nil result means the directory could not narrow the audience.
func (h *Handler) brandAdmins(ctx context.Context, brandID string) ([]string, error) {
	if h.users == nil || brandID == "" {
		return nil, nil
	}
	all, err := h.users.UsersWithRole(ctx, user.RoleBrandAdmin)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, u := range all {
		if u.BrandID == brandID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}
