package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

// RoleRepo manages the per-tenant role table.
type RoleRepo struct{ q querier }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{q: db} }

const roleFields = `tenant_id, name, level, can_view_all_data, can_view_hierarchy_data,
	can_manage_team, can_manage_roles, can_manage_clients, can_upload_content, can_generate_reports`

const roleColumns = "id, " + roleFields

// Create inserts roles for tenantID and returns them with their ids.
// A name already used in the tenant yields ErrConflict.
func (r *RoleRepo) Create(ctx context.Context, tenantID uint64, roles []model.Role) ([]model.Role, error) {
	out := make([]model.Role, 0, len(roles))
	for _, role := range roles {
		c := role.Capabilities
		res, err := r.q.ExecContext(ctx,
			"INSERT INTO roles ("+roleFields+") VALUES (?,?,?,?,?,?,?,?,?,?)",
			tenantID, role.Name, role.Level, c.ViewAllData, c.ViewHierarchyData,
			c.ManageTeam, c.ManageRoles, c.ManageClients, c.UploadContent, c.GenerateReports)
		if err != nil {
			if isDuplicate(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		role.ID, role.TenantID = uint64(id), tenantID
		out = append(out, role)
	}
	return out, nil
}

// ListByTenant returns the roles of a tenant, most privileged first.
func (r *RoleRepo) ListByTenant(ctx context.Context, tenantID uint64) ([]model.Role, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE tenant_id = ? ORDER BY level, name", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var role model.Role
		c := &role.Capabilities
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &role.Level,
			&c.ViewAllData, &c.ViewHierarchyData, &c.ManageTeam, &c.ManageRoles,
			&c.ManageClients, &c.UploadContent, &c.GenerateReports); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Delete removes a role of tenantID.  Roles still held by a user are
// kept and yield ErrConflict.  Holders are only counted for the tenant's
// own roles, so another tenant's role reads as ErrNotFound either way.
func (r *RoleRepo) Delete(ctx context.Context, tenantID, roleID uint64) error {
	var holders int
	if err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.id = ? AND r.tenant_id = ?",
		roleID, tenantID).Scan(&holders); err != nil {
		return err
	}
	if holders > 0 {
		return ErrConflict
	}
	res, err := r.q.ExecContext(ctx, "DELETE FROM roles WHERE id = ? AND tenant_id = ?", roleID, tenantID)
	if err != nil {
		if isForeignKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
