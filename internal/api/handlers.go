package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/api/middleware"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/command"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/notification"
)

// mutationTimeout caps how long a mutation may hold its row transaction.
const mutationTimeout = 5 * time.Second

type Handlers struct {
	cmdHandler *command.Handler
	dispatcher *notification.Dispatcher
	products   store.ProductStore
	orders     store.OrderStore
	audit      store.AuditStore
}

func NewHandlers(cmdHandler *command.Handler, dispatcher *notification.Dispatcher,
	products store.ProductStore, orders store.OrderStore, audit store.AuditStore) *Handlers {
	return &Handlers{
		cmdHandler: cmdHandler,
		dispatcher: dispatcher,
		products:   products,
		orders:     orders,
		audit:      audit,
	}
}

// Product handlers

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")
	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ApplyInventoryChange handles POST /products/{id}/inventory.
func (h *Handlers) ApplyInventoryChange(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/products/"), "/inventory")
	actor, _ := middleware.ActorFromContext(r.Context())

	var cmd command.ApplyInventoryChange
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSONError(w, "invalid request body", KindValidation, http.StatusBadRequest)
		return
	}
	cmd.ProductID = id
	if cmd.Quantity < 0 {
		respondJSONError(w, "quantity must not be negative", KindValidation, http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithMutationTimeout(r)
	defer cancel()

	change, err := h.cmdHandler.ApplyInventoryChange(ctx, cmd, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, change)
}

// Order handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())

	var cmd command.PlaceOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSONError(w, "invalid request body", KindValidation, http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithMutationTimeout(r)
	defer cancel()

	o, err := h.cmdHandler.PlaceOrder(ctx, cmd, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	actor, _ := middleware.ActorFromContext(r.Context())

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	// Buyers see only their own orders; admins see all.
	if actor.Role == user.RoleBuyer && o.UserID != actor.UserID {
		respondJSONError(w, "forbidden", KindRejected, http.StatusForbidden)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// TransitionOrder handles POST /orders/{id}/status.
func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/status")
	actor, _ := middleware.ActorFromContext(r.Context())

	var req struct {
		TargetStatus string            `json:"target_status"`
		Metadata     map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", KindValidation, http.StatusBadRequest)
		return
	}
	if req.TargetStatus == "" {
		respondJSONError(w, "target_status is required", KindValidation, http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithMutationTimeout(r)
	defer cancel()

	err := h.cmdHandler.TransitionOrder(ctx, command.TransitionOrder{
		OrderID:      id,
		TargetStatus: order.Status(req.TargetStatus),
		Metadata:     req.Metadata,
	}, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": req.TargetStatus})
}

// CancelOrder handles POST /orders/{id}/cancel as shorthand for a
// CANCELLED transition.
func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/cancel")
	actor, _ := middleware.ActorFromContext(r.Context())

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	metadata := map[string]string{}
	if req.Reason != "" {
		metadata["reason"] = req.Reason
	}

	ctx, cancel := contextWithMutationTimeout(r)
	defer cancel()

	err := h.cmdHandler.TransitionOrder(ctx, command.TransitionOrder{
		OrderID:      id,
		TargetStatus: order.StatusCancelled,
		Metadata:     metadata,
	}, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": string(order.StatusCancelled)})
}

// Notification handlers

// GetNotifications handles GET /notifications?since=<RFC3339>.
func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondJSONError(w, "since must be an RFC 3339 timestamp", KindValidation, http.StatusBadRequest)
			return
		}
		since = parsed
	}

	notifications, err := h.dispatcher.Notifications(r.Context(), actor.UserID, actor.Role, since)
	if err != nil {
		writeError(w, err)
		return
	}
	unread, err := h.dispatcher.UnreadCount(r.Context(), actor.UserID, actor.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

// MarkNotificationRead handles POST /notifications/{id}/read.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/notifications/"), "/read")
	actor, _ := middleware.ActorFromContext(r.Context())

	// The id may live under the user's own key or the role's shared key;
	// marking is idempotent either way.
	if err := h.dispatcher.MarkAsRead(r.Context(), actor.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.dispatcher.MarkAsRead(r.Context(), notification.RoleKey(actor.Role), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /notifications/read-all.
func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())
	if err := h.dispatcher.MarkAllAsRead(r.Context(), actor.UserID, actor.Role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audit handlers

// GetAuditTrail handles GET /audit/{entityType}/{id} (admin only).
func (h *Handlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	rest := extractPathParam(r.URL.Path, "/audit/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		respondJSONError(w, "expected /audit/{entityType}/{id}", KindValidation, http.StatusBadRequest)
		return
	}

	records, err := h.audit.ListAudit(r.Context(), parts[0], parts[1])
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Helpers

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// contextWithMutationTimeout bounds every mutation call; on expiry the
// row transaction rolls back and the caller sees a timeout failure.
func contextWithMutationTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), mutationTimeout)
}
