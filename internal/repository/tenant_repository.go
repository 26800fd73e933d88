package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

// TenantRepo manages persistence for tenants.
type TenantRepo struct{ q querier }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{q: db} }

// Create inserts t as an active tenant and fills in its ID.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO tenants (name, is_active, created_by) VALUES (?, 1, ?)",
		t.Name, argID(t.CreatedBy))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.IsActive = true
	return nil
}

// GetByID returns the tenant with id.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (*model.Tenant, error) {
	var (
		t  model.Tenant
		by sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, is_active, created_at, created_by FROM tenants WHERE id = ?", id).
		Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &by)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedBy = nullID(by)
	return &t, nil
}
