package user

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidEmail  = errors.New("email is required")
	ErrInvalidName   = errors.New("name is required")
	ErrUserSuspended = errors.New("user account is suspended")
	ErrForbidden     = errors.New("operation not permitted for this actor")
)

type Role string

const (
	RoleBuyer       Role = "BUYER"
	RoleBrandAdmin  Role = "BRAND_ADMIN"
	RoleMasterAdmin Role = "MASTER_ADMIN"
)

// ValidRole reports whether s is one of the known roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleBuyer, RoleBrandAdmin, RoleMasterAdmin:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// User is the identity aggregate. It is read-only for this subsystem:
// the other aggregates consult it for authorization decisions only.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	BrandID      string    `json:"brand_id,omitempty"` // meaningful only for BRAND_ADMIN
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanManageBrand reports whether the user may administer resources owned
// by the given brand. Master admins manage every brand; brand admins only
// their own.
func (u *User) CanManageBrand(brandID string) bool {
	switch u.Role {
	case RoleMasterAdmin:
		return true
	case RoleBrandAdmin:
		return u.BrandID != "" && u.BrandID == brandID
	}
	return false
}

// ValidateRegistration checks the fields a self-service signup must
// supply.
func ValidateRegistration(email, name string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	if name == "" {
		return ErrInvalidName
	}
	return nil
}

// IsActive reports whether the account may act at all.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Actor is the already-authenticated identity attached to an inbound
// command. Authentication happens at the HTTP boundary; the core only
// ever sees an Actor.
type Actor struct {
	UserID  string `json:"user_id"`
	Role    Role   `json:"role"`
	BrandID string `json:"brand_id,omitempty"`
	Origin  string `json:"origin,omitempty"` // caller network origin, recorded in audit entries
}

// CanManageBrand mirrors User.CanManageBrand for the authenticated actor.
func (a Actor) CanManageBrand(brandID string) bool {
	switch a.Role {
	case RoleMasterAdmin:
		return true
	case RoleBrandAdmin:
		return a.BrandID != "" && a.BrandID == brandID
	}
	return false
}

// ForbiddenError is returned when an actor fails an authorization check.
// It carries enough detail for the caller to explain the rejection.
type ForbiddenError struct {
	Role   Role
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden for role %s: %s", e.Role, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }
