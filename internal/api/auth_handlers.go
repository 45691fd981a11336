package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/auth"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/domain/user"
	"github.com/JO-HEEJIN/stellar-walrus-glow-sub002/internal/infrastructure/store"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	users      store.UserStore
	jwtService *auth.JWTService
}

func NewAuthHandlers(users store.UserStore, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{users: users, jwtService: jwtService}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      user.Role `json:"role"`
	BrandID   string    `json:"brand_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Register handles self-service buyer registration. Brand and master
// admin accounts are provisioned out of band.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", KindValidation, http.StatusBadRequest)
		return
	}
	if err := user.ValidateRegistration(req.Email, req.Name); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.users.GetUserByEmail(r.Context(), req.Email); err == nil {
		respondJSONError(w, "email already registered", KindRejected, http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondJSONError(w, err.Error(), KindValidation, http.StatusBadRequest)
			return
		}
		writeError(w, err)
		return
	}

	now := time.Now()
	newUser := &user.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         user.RoleBuyer,
		Status:       user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.CreateUser(r.Context(), newUser); err != nil {
		writeError(w, err)
		return
	}

	token := h.issueToken(w, r, newUser)
	respondJSON(w, http.StatusCreated, AuthResponse{
		User:  toUserResponse(newUser),
		Token: token,
	})
}

// Login handles credential login and issues an access token.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", KindValidation, http.StatusBadRequest)
		return
	}

	u, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(req.Password, u.PasswordHash) {
		respondJSONError(w, "invalid email or password", KindRejected, http.StatusUnauthorized)
		return
	}
	if !u.IsActive() {
		writeError(w, user.ErrUserSuspended)
		return
	}

	token := h.issueToken(w, r, u)
	respondJSON(w, http.StatusOK, AuthResponse{
		User:  toUserResponse(u),
		Token: token,
	})
}

// issueToken generates an access token and also sets it as a cookie for
// browser clients.
func (h *AuthHandlers) issueToken(w http.ResponseWriter, r *http.Request, u *user.User) string {
	token, expiresAt, err := h.jwtService.GenerateAccessToken(u)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return token
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		BrandID:   u.BrandID,
		CreatedAt: u.CreatedAt,
	}
}
