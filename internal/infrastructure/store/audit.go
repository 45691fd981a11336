package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
)

// Audit action kinds.
const (
	ActionInventoryChange   = "INVENTORY_CHANGE"
	ActionOrderCreated      = "ORDER_CREATED"
	ActionOrderStatusChange = "ORDER_STATUS_CHANGE"
)

// Audited entity types.
const (
	EntityProduct = "Product"
	EntityOrder   = "Order"
)

// AuditRecord is append-only: created once per mutation, never updated or
// deleted by this subsystem. Metadata carries the mutation-specific
// payload (previous/new inventory, previous/new status, and so on).
type AuditRecord struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	ActorRole  user.Role       `json:"actor_role"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Origin     string          `json:"origin,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewAuditRecord builds a record for the given actor and mutation,
// marshalling metadata to JSON.
func NewAuditRecord(actor user.Actor, action, entityType, entityID string, metadata any) (*AuditRecord, error) {
	var raw json.RawMessage
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &AuditRecord{
		ID:         uuid.New().String(),
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   raw,
		Origin:     actor.Origin,
		CreatedAt:  time.Now(),
	}, nil
}
