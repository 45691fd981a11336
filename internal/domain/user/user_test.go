package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================
// Role Tests
// ============================================

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("BUYER"))
	assert.True(t, ValidRole("BRAND_ADMIN"))
	assert.True(t, ValidRole("MASTER_ADMIN"))
	assert.False(t, ValidRole("ADMIN"))
	assert.False(t, ValidRole(""))
	assert.False(t, ValidRole("buyer"))
}

// ============================================
// Authorization Tests
// ============================================

func TestUser_CanManageBrand(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		brandID string
		target  string
		want    bool
	}{
		{"master admin manages any brand", RoleMasterAdmin, "", "brand-1", true},
		{"brand admin manages own brand", RoleBrandAdmin, "brand-1", "brand-1", true},
		{"brand admin rejected for other brand", RoleBrandAdmin, "brand-1", "brand-2", false},
		{"brand admin without brand rejected", RoleBrandAdmin, "", "", false},
		{"buyer rejected", RoleBuyer, "", "brand-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{ID: "user-1", Role: tt.role, BrandID: tt.brandID}
			assert.Equal(t, tt.want, u.CanManageBrand(tt.target))

			a := Actor{UserID: "user-1", Role: tt.role, BrandID: tt.brandID}
			assert.Equal(t, tt.want, a.CanManageBrand(tt.target))
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	assert.NoError(t, ValidateRegistration("a@b.com", "Alice"))
	assert.ErrorIs(t, ValidateRegistration("", "Alice"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateRegistration("a@b.com", ""), ErrInvalidName)
}

func TestUser_IsActive(t *testing.T) {
	assert.True(t, (&User{Status: StatusActive}).IsActive())
	assert.False(t, (&User{Status: StatusSuspended}).IsActive())
	assert.False(t, (&User{Status: StatusDeleted}).IsActive())
}

func TestForbiddenError(t *testing.T) {
	err := &ForbiddenError{Role: RoleBuyer, Reason: "buyers cannot adjust inventory"}
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "BUYER")
	assert.Contains(t, err.Error(), "buyers cannot adjust inventory")
}
