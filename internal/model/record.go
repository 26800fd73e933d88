package model

import "time"

// Owned is implemented by every tenant-scoped record that has an owner.
// Tenant and Owner return nil when the field is unset.
type Owned interface {
	Tenant() *uint64
	Owner() *uint64
}

// EntityKind describes where an owned entity lives and how its owner is
// read in SQL.  OwnerExpr mirrors the entity's Owner method: the
// provenance column, falling back to the legacy owner column.  Each table
// stores it as the generated column OwnerColumn, indexed with tenant_id,
// so scoped reads compare a plain column.
type EntityKind struct {
	Name        string
	Table       string
	OwnerExpr   string
	OwnerColumn string
}

var (
	EntityCustomer  = EntityKind{Name: "customer", Table: "customers", OwnerExpr: "COALESCE(primary_owner_id, user_id)", OwnerColumn: "owner_id"}
	EntityRecording = EntityKind{Name: "recording", Table: "recordings", OwnerExpr: "COALESCE(uploaded_by, user_id)", OwnerColumn: "owner_id"}
	EntityReport    = EntityKind{Name: "report", Table: "reports", OwnerExpr: "COALESCE(created_by, user_id)", OwnerColumn: "owner_id"}
	EntitySalesRoom = EntityKind{Name: "sales_room", Table: "sales_rooms", OwnerExpr: "COALESCE(created_by, user_id)", OwnerColumn: "owner_id"}
)

// Customer is a client account.  UserID is the legacy single-user owner
// that predates tenancy; CreatedBy and PrimaryOwner are backfilled from
// it.
type Customer struct {
	ID           uint64    // customers.id
	Name         string    // customers.name
	TenantID     *uint64   // customers.tenant_id
	UserID       *uint64   // customers.user_id (legacy owner)
	CreatedBy    *uint64   // customers.created_by
	PrimaryOwner *uint64   // customers.primary_owner_id
	CreatedAt    time.Time // customers.created_at
}

func (c *Customer) Tenant() *uint64 { return c.TenantID }

// Owner prefers the primary owner and falls back to the legacy owner.
func (c *Customer) Owner() *uint64 {
	if c.PrimaryOwner != nil {
		return c.PrimaryOwner
	}
	return c.UserID
}

// Recording is an uploaded call or meeting transcript.
type Recording struct {
	ID         uint64    // recordings.id
	Title      string    // recordings.title
	TenantID   *uint64   // recordings.tenant_id
	UserID     *uint64   // recordings.user_id (legacy owner)
	CustomerID *uint64   // recordings.customer_id
	UploadedBy *uint64   // recordings.uploaded_by
	CreatedAt  time.Time // recordings.created_at
}

func (r *Recording) Tenant() *uint64 { return r.TenantID }

func (r *Recording) Owner() *uint64 {
	if r.UploadedBy != nil {
		return r.UploadedBy
	}
	return r.UserID
}

// Report is a document generated from a recording.
type Report struct {
	ID          uint64    // reports.id
	Title       string    // reports.title
	TenantID    *uint64   // reports.tenant_id
	UserID      *uint64   // reports.user_id (legacy owner)
	RecordingID *uint64   // reports.recording_id
	CustomerID  *uint64   // reports.customer_id
	CreatedBy   *uint64   // reports.created_by
	CreatedAt   time.Time // reports.created_at
}

func (r *Report) Tenant() *uint64 { return r.TenantID }

func (r *Report) Owner() *uint64 {
	if r.CreatedBy != nil {
		return r.CreatedBy
	}
	return r.UserID
}

// SalesRoom is a shared deal space for one customer.
type SalesRoom struct {
	ID         uint64    // sales_rooms.id
	Name       string    // sales_rooms.name
	TenantID   *uint64   // sales_rooms.tenant_id
	UserID     *uint64   // sales_rooms.user_id (legacy owner)
	CustomerID *uint64   // sales_rooms.customer_id
	CreatedBy  *uint64   // sales_rooms.created_by
	CreatedAt  time.Time // sales_rooms.created_at
}

func (s *SalesRoom) Tenant() *uint64 { return s.TenantID }

func (s *SalesRoom) Owner() *uint64 {
	if s.CreatedBy != nil {
		return s.CreatedBy
	}
	return s.UserID
}
