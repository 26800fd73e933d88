package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

// CustomerRepo reads customers through a visibility scope.
type CustomerRepo struct{ q querier }

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{q: db} }

const customerColumns = "id, name, tenant_id, user_id, created_by, primary_owner_id, created_at"

func scanCustomer(s rowScanner) (model.Customer, error) {
	var (
		c                         model.Customer
		tenant, user, by, primary sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.Name, &tenant, &user, &by, &primary, &c.CreatedAt); err != nil {
		return c, err
	}
	c.TenantID, c.UserID, c.CreatedBy, c.PrimaryOwner = nullID(tenant), nullID(user), nullID(by), nullID(primary)
	return c, nil
}

// List returns the customers visible under s, newest first.
func (r *CustomerRepo) List(ctx context.Context, s visibility.Scope, p Page) ([]model.Customer, error) {
	out := []model.Customer{}
	err := scopedList(ctx, r.q, model.EntityCustomer, customerColumns, s, p, func(rows *sql.Rows) error {
		c, err := scanCustomer(rows)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// Get returns customer id if it is visible under s, else ErrNotFound.
func (r *CustomerRepo) Get(ctx context.Context, s visibility.Scope, id uint64) (*model.Customer, error) {
	var c model.Customer
	err := scopedGet(ctx, r.q, model.EntityCustomer, customerColumns, s, id, func(row rowScanner) error {
		var err error
		c, err = scanCustomer(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepo) pending(ctx context.Context, owner *uint64) ([]model.Customer, error) {
	cond, args := ownerFilter(owner)
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+customerColumns+" FROM customers"+
			" WHERE (tenant_id IS NULL OR created_by IS NULL OR primary_owner_id IS NULL)"+cond+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CustomerRepo) update(ctx context.Context, c *model.Customer) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE customers SET tenant_id = ?, created_by = ?, primary_owner_id = ? WHERE id = ?",
		argID(c.TenantID), argID(c.CreatedBy), argID(c.PrimaryOwner), c.ID)
	return err
}
