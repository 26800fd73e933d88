package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/iliyamo/sales-tenancy/internal/migration"
	"github.com/iliyamo/sales-tenancy/internal/model"
)

// BackfillStore runs the tenancy backfill against MySQL.  Every Tx it
// opens binds the repositories to one *sql.Tx, so reads inside a phase
// see the phase's own earlier writes.
type BackfillStore struct{ db *sql.DB }

func NewBackfillStore(db *sql.DB) *BackfillStore { return &BackfillStore{db: db} }

var _ migration.Store = (*BackfillStore)(nil)

// Begin starts a transaction.
func (s *BackfillStore) Begin(ctx context.Context) (migration.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &backfillTx{
		tx:         tx,
		users:      &UserRepo{q: tx},
		tenants:    &TenantRepo{q: tx},
		roles:      &RoleRepo{q: tx},
		customers:  &CustomerRepo{q: tx},
		recordings: &RecordingRepo{q: tx},
		reports:    &ReportRepo{q: tx},
		rooms:      &SalesRoomRepo{q: tx},
	}, nil
}

type backfillTx struct {
	tx         *sql.Tx
	users      *UserRepo
	tenants    *TenantRepo
	roles      *RoleRepo
	customers  *CustomerRepo
	recordings *RecordingRepo
	reports    *ReportRepo
	rooms      *SalesRoomRepo
}

func (t *backfillTx) Commit() error   { return t.tx.Commit() }
func (t *backfillTx) Rollback() error { return t.tx.Rollback() }

// Savepoint names cannot be bound as parameters, so they are checked
// before being spliced into the statement.
var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (t *backfillTx) Savepoint(ctx context.Context, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *backfillTx) RollbackTo(ctx context.Context, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *backfillTx) UserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := t.users.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

func (t *backfillTx) UserTenant(ctx context.Context, userID uint64) (*uint64, error) {
	return t.users.tenantOf(ctx, userID)
}

func (t *backfillTx) OrphanUsers(ctx context.Context, email string) ([]model.User, error) {
	return t.users.orphans(ctx, email)
}

func (t *backfillTx) CreateTenant(ctx context.Context, tn *model.Tenant) error {
	return t.tenants.Create(ctx, tn)
}

func (t *backfillTx) CreateRoles(ctx context.Context, tenantID uint64, roles []model.Role) ([]model.Role, error) {
	return t.roles.Create(ctx, tenantID, roles)
}

func (t *backfillTx) AssignTenant(ctx context.Context, userID, tenantID, roleID uint64, joinedAt time.Time) error {
	return t.users.assignTenant(ctx, userID, tenantID, roleID, joinedAt)
}

func (t *backfillTx) CustomerTenant(ctx context.Context, id uint64) (*uint64, error) {
	return tenantOfRow(ctx, t.tx, model.EntityCustomer.Table, id)
}

func (t *backfillTx) RecordingTenant(ctx context.Context, id uint64) (*uint64, error) {
	return tenantOfRow(ctx, t.tx, model.EntityRecording.Table, id)
}

func (t *backfillTx) PendingCustomers(ctx context.Context, owner *uint64) ([]model.Customer, error) {
	return t.customers.pending(ctx, owner)
}

func (t *backfillTx) PendingRecordings(ctx context.Context, owner *uint64) ([]model.Recording, error) {
	return t.recordings.pending(ctx, owner)
}

func (t *backfillTx) PendingReports(ctx context.Context, owner *uint64) ([]model.Report, error) {
	return t.reports.pending(ctx, owner)
}

func (t *backfillTx) PendingSalesRooms(ctx context.Context, owner *uint64) ([]model.SalesRoom, error) {
	return t.rooms.pending(ctx, owner)
}

func (t *backfillTx) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	return t.customers.update(ctx, c)
}

func (t *backfillTx) UpdateRecording(ctx context.Context, r *model.Recording) error {
	return t.recordings.update(ctx, r)
}

func (t *backfillTx) UpdateReport(ctx context.Context, r *model.Report) error {
	return t.reports.update(ctx, r)
}

func (t *backfillTx) UpdateSalesRoom(ctx context.Context, s *model.SalesRoom) error {
	return t.rooms.update(ctx, s)
}
