package model

import "time"

// User represents a principal as stored in the `users` table.  A user
// belongs to at most one tenant (TenantID is nil during the migration
// window), holds one role and optionally reports to a manager in the
// same tenant.  Only the forward manager edge is stored; subordinates
// are always derived by query so the two directions cannot diverge.
//
// Fields:
//  ID              : primary key identifier of the user.
//  Email           : unique email address.
//  PasswordHash    : bcrypt hashed password.
//  TenantID        : owning tenant (nullable).
//  RoleID          : role inside the tenant (nullable).
//  ManagerID       : direct manager (nullable).
//  IsActiveInTenant: whether the user currently counts as a member.
//  JoinedAt        : when the user joined the tenant (nullable).
//  Role            : the loaded role row, nil when RoleID is nil or not loaded.
type User struct {
	ID               uint64     // users.id
	Email            string     // users.email
	PasswordHash     string     // users.password_hash
	TenantID         *uint64    // users.tenant_id
	RoleID           *uint64    // users.role_id
	ManagerID        *uint64    // users.manager_id
	IsActiveInTenant bool       // users.is_active_in_tenant
	JoinedAt         *time.Time // users.joined_at
	CreatedAt        time.Time  // users.created_at
	UpdatedAt        time.Time  // users.updated_at

	Role *Role
}

// Capabilities returns the role flags of the user.  A user without a
// role has no capabilities at all.
func (u *User) Capabilities() Capabilities {
	if u == nil || u.Role == nil {
		return Capabilities{}
	}
	return u.Role.Capabilities
}

// SameTenant reports whether both users belong to the same, non-nil tenant.
func (u *User) SameTenant(o *User) bool {
	if u == nil || o == nil || u.TenantID == nil || o.TenantID == nil {
		return false
	}
	return *u.TenantID == *o.TenantID
}
