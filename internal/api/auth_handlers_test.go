package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/auth"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
)

func setupAuthHandlers(t *testing.T) (*AuthHandlers, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	jwtService := auth.NewJWTService("test-secret", time.Hour)
	return NewAuthHandlers(mem, jwtService), mem
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	handler(w, r)
	return w
}

func seedUser(t *testing.T, mem *store.Memory, email, password string, status user.Status) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, mem.CreateUser(context.Background(), &user.User{
		ID:           "user-1",
		Email:        email,
		Name:         "Test Buyer",
		PasswordHash: hash,
		Role:         user.RoleBuyer,
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}))
}

// ============================================
// Register Tests
// ============================================

func TestAuthHandlers_Register_Success(t *testing.T) {
	h, mem := setupAuthHandlers(t)

	w := postJSON(t, h.Register, "/auth/register", RegisterRequest{
		Email:    "buyer@example.com",
		Password: "correct horse",
		Name:     "Buyer One",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.RoleBuyer, resp.User.Role)

	stored, err := mem.GetUserByEmail(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.StatusActive, stored.Status)
}

func TestAuthHandlers_Register_MissingEmail(t *testing.T) {
	h, _ := setupAuthHandlers(t)

	w := postJSON(t, h.Register, "/auth/register", RegisterRequest{
		Password: "correct horse",
		Name:     "Buyer One",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, KindValidation, resp.Kind)
	assert.Equal(t, user.ErrInvalidEmail.Error(), resp.Error)
}

func TestAuthHandlers_Register_MissingName(t *testing.T) {
	h, _ := setupAuthHandlers(t)

	w := postJSON(t, h.Register, "/auth/register", RegisterRequest{
		Email:    "buyer@example.com",
		Password: "correct horse",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, KindValidation, resp.Kind)
	assert.Equal(t, user.ErrInvalidName.Error(), resp.Error)
}

func TestAuthHandlers_Register_DuplicateEmail(t *testing.T) {
	h, mem := setupAuthHandlers(t)
	seedUser(t, mem, "buyer@example.com", "correct horse", user.StatusActive)

	w := postJSON(t, h.Register, "/auth/register", RegisterRequest{
		Email:    "buyer@example.com",
		Password: "correct horse",
		Name:     "Buyer One",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, KindRejected, decodeError(t, w).Kind)
}

// ============================================
// Login Tests
// ============================================

func TestAuthHandlers_Login_Success(t *testing.T) {
	h, mem := setupAuthHandlers(t)
	seedUser(t, mem, "buyer@example.com", "correct horse", user.StatusActive)

	w := postJSON(t, h.Login, "/auth/login", LoginRequest{
		Email:    "buyer@example.com",
		Password: "correct horse",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
}

func TestAuthHandlers_Login_WrongPassword(t *testing.T) {
	h, mem := setupAuthHandlers(t)
	seedUser(t, mem, "buyer@example.com", "correct horse", user.StatusActive)

	w := postJSON(t, h.Login, "/auth/login", LoginRequest{
		Email:    "buyer@example.com",
		Password: "wrong horse",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, KindRejected, decodeError(t, w).Kind)
}

func TestAuthHandlers_Login_SuspendedAccount(t *testing.T) {
	h, mem := setupAuthHandlers(t)
	seedUser(t, mem, "buyer@example.com", "correct horse", user.StatusSuspended)

	w := postJSON(t, h.Login, "/auth/login", LoginRequest{
		Email:    "buyer@example.com",
		Password: "correct horse",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, KindRejected, resp.Kind)
	assert.Equal(t, user.ErrUserSuspended.Error(), resp.Error)
}
