// Package migration backfills tenant, role and owner fields onto
// records that predate multi-tenancy.  The backfill runs in four
// ordered phases and is safe to run repeatedly.
package migration

import (
	"context"
	"time"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

// Store opens transactions over the data being backfilled.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one transaction.  Reads observe the transaction's own earlier
// writes.  Savepoints let a single record's partial writes be undone
// without losing the rest of the phase.
type Tx interface {
	Commit() error
	Rollback() error
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error

	// UserByEmail returns the user with the given email.
	UserByEmail(ctx context.Context, email string) (model.User, error)
	// UserTenant returns the tenant of a user, nil when unset or unknown.
	UserTenant(ctx context.Context, userID uint64) (*uint64, error)
	// OrphanUsers lists users without a tenant, optionally only the one
	// with the given email.
	OrphanUsers(ctx context.Context, email string) ([]model.User, error)
	CreateTenant(ctx context.Context, t *model.Tenant) error
	// CreateRoles inserts roles for tenantID and returns them with ids.
	CreateRoles(ctx context.Context, tenantID uint64, roles []model.Role) ([]model.Role, error)
	AssignTenant(ctx context.Context, userID, tenantID, roleID uint64, joinedAt time.Time) error

	CustomerTenant(ctx context.Context, customerID uint64) (*uint64, error)
	RecordingTenant(ctx context.Context, recordingID uint64) (*uint64, error)

	// The Pending* methods list records missing a tenant or provenance
	// field.  A non-nil ownerID restricts them to that legacy owner.
	PendingCustomers(ctx context.Context, ownerID *uint64) ([]model.Customer, error)
	PendingRecordings(ctx context.Context, ownerID *uint64) ([]model.Recording, error)
	PendingReports(ctx context.Context, ownerID *uint64) ([]model.Report, error)
	PendingSalesRooms(ctx context.Context, ownerID *uint64) ([]model.SalesRoom, error)

	UpdateCustomer(ctx context.Context, c *model.Customer) error
	UpdateRecording(ctx context.Context, r *model.Recording) error
	UpdateReport(ctx context.Context, r *model.Report) error
	UpdateSalesRoom(ctx context.Context, s *model.SalesRoom) error
}

// ResolveTenant returns the first non-nil tenant among candidates, in
// the order given.  Callers list the record's own tenant first, then
// the owner's, then related records' tenants.  Nil means no tenant can
// be resolved; a tenant is never guessed.
func ResolveTenant(candidates ...*uint64) *uint64 {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
