package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/guard"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/inventory"
)

// Stable machine-readable failure kinds. Callers are expected to branch
// on the kind, not the message.
const (
	KindValidation  = "validation"
	KindRejected    = "rejected"
	KindConflict    = "conflict"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindSystem      = "system"
)

type errorResponse struct {
	Error  string         `json:"error"`
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}

// writeError maps a core failure to an HTTP status and a stable kind,
// attaching structured detail where the error carries it.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Kind: KindSystem}
	status := http.StatusInternalServerError

	var insufficient *inventory.InsufficientInventoryError
	var invalidTransition *order.InvalidTransitionError
	var forbidden *user.ForbiddenError

	switch {
	case errors.As(err, &insufficient):
		status = http.StatusConflict
		resp.Kind = KindRejected
		resp.Detail = map[string]any{
			"product_id": insufficient.ProductID,
			"current":    insufficient.Current,
			"requested":  insufficient.Requested,
		}
	case errors.As(err, &invalidTransition):
		status = http.StatusConflict
		resp.Kind = KindRejected
		resp.Detail = map[string]any{
			"current_status":   invalidTransition.From,
			"requested_status": invalidTransition.To,
		}
	case errors.As(err, &forbidden):
		status = http.StatusForbidden
		resp.Kind = KindRejected
	case errors.Is(err, guard.ErrRateLimited):
		status = http.StatusTooManyRequests
		resp.Kind = KindRateLimited
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
		resp.Kind = KindConflict
		resp.Error = "write conflict, try again"
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound):
		status = http.StatusNotFound
		resp.Kind = KindNotFound
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrTotalMismatch),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrInvalidName),
		errors.Is(err, inventory.ErrInvalidOperation),
		errors.Is(err, inventory.ErrNegativeQuantity):
		status = http.StatusBadRequest
		resp.Kind = KindValidation
	case errors.Is(err, user.ErrForbidden),
		errors.Is(err, user.ErrUserSuspended):
		status = http.StatusForbidden
		resp.Kind = KindRejected
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		resp.Kind = KindSystem
		resp.Error = "operation timed out"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message, kind string, status int) {
	respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}
