package model

import "time"

// Tenant represents a company, the isolation boundary for all
// tenant-scoped data.  This struct corresponds to a row in the
// `tenants` table.  Tenants are soft-deactivated via IsActive and
// are never hard-deleted in normal operation.
//
// Fields:
//  ID       : primary key identifier.
//  Name     : display name of the company.
//  IsActive : false once the tenant has been deactivated.
//  CreatedAt: timestamp when the tenant was created.
//  CreatedBy: user that created the tenant (nullable).
type Tenant struct {
	ID        uint64    // tenants.id
	Name      string    // tenants.name
	IsActive  bool      // tenants.is_active
	CreatedAt time.Time // tenants.created_at
	CreatedBy *uint64   // tenants.created_by (nullable)
}

// CompanyNameFor derives the deterministic tenant name used when a
// company is provisioned for a user that has none.
func CompanyNameFor(email string) string {
	return email + "'s Company"
}
