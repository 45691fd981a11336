package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/order"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/product"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/guard"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/inventory"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"insufficient inventory", &inventory.InsufficientInventoryError{ProductID: "p", Current: 2, Requested: 5}, http.StatusConflict, KindRejected},
		{"invalid transition", &order.InvalidTransitionError{From: order.StatusPending, To: order.StatusShipped}, http.StatusConflict, KindRejected},
		{"forbidden", &user.ForbiddenError{Role: user.RoleBuyer, Reason: "nope"}, http.StatusForbidden, KindRejected},
		{"forbidden sentinel", user.ErrForbidden, http.StatusForbidden, KindRejected},
		{"rate limited", guard.ErrRateLimited, http.StatusTooManyRequests, KindRateLimited},
		{"write conflict", fmt.Errorf("update failed: %w", store.ErrConflict), http.StatusConflict, KindConflict},
		{"not found", store.ErrNotFound, http.StatusNotFound, KindNotFound},
		{"order not found", order.ErrOrderNotFound, http.StatusNotFound, KindNotFound},
		{"product not found", fmt.Errorf("%w: prod-9", product.ErrProductNotFound), http.StatusNotFound, KindNotFound},
		{"empty order", order.ErrEmptyOrder, http.StatusBadRequest, KindValidation},
		{"missing email", user.ErrInvalidEmail, http.StatusBadRequest, KindValidation},
		{"missing name", user.ErrInvalidName, http.StatusBadRequest, KindValidation},
		{"suspended account", user.ErrUserSuspended, http.StatusForbidden, KindRejected},
		{"bad operation", inventory.ErrInvalidOperation, http.StatusBadRequest, KindValidation},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, KindSystem},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, KindSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.kind, decodeError(t, w).Kind)
		})
	}
}

func TestWriteError_InsufficientInventoryDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, &inventory.InsufficientInventoryError{ProductID: "prod-1", Current: 2, Requested: 5})

	resp := decodeError(t, w)
	assert.Equal(t, "prod-1", resp.Detail["product_id"])
	assert.Equal(t, float64(2), resp.Detail["current"])
	assert.Equal(t, float64(5), resp.Detail["requested"])
}

func TestWriteError_WrappedErrorsStillMap(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("apply change: %w", &inventory.InsufficientInventoryError{ProductID: "p", Current: 0, Requested: 1})
	writeError(w, err)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, KindRejected, decodeError(t, w).Kind)
}
