package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
	"github.com/iliyamo/sales-tenancy/internal/model"
)

// UserRepo reads and writes the users table.  It also serves as the
// hierarchy.Graph over the stored manager edges.
type UserRepo struct{ q querier }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{q: db} }

var _ hierarchy.Graph = (*UserRepo)(nil)

const userColumns = `u.id, u.email, u.password_hash, u.tenant_id, u.role_id, u.manager_id,
	u.is_active_in_tenant, u.joined_at, u.created_at, u.updated_at,
	r.id, r.tenant_id, r.name, r.level,
	r.can_view_all_data, r.can_view_hierarchy_data, r.can_manage_team, r.can_manage_roles,
	r.can_manage_clients, r.can_upload_content, r.can_generate_reports`

const userFrom = ` FROM users u LEFT JOIN roles r ON r.id = u.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u                        model.User
		tenantID, roleID, mgrID  sql.NullInt64
		joined                   sql.NullTime
		rID, rTenant, rLevel     sql.NullInt64
		rName                    sql.NullString
		all, hier, team, roles   sql.NullBool
		clients, upload, reports sql.NullBool
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &tenantID, &roleID, &mgrID,
		&u.IsActiveInTenant, &joined, &u.CreatedAt, &u.UpdatedAt,
		&rID, &rTenant, &rName, &rLevel,
		&all, &hier, &team, &roles, &clients, &upload, &reports)
	if err != nil {
		return nil, err
	}
	u.TenantID, u.RoleID, u.ManagerID = nullID(tenantID), nullID(roleID), nullID(mgrID)
	u.JoinedAt = nullTime(joined)
	if rID.Valid {
		u.Role = &model.Role{
			ID:       uint64(rID.Int64),
			TenantID: uint64(rTenant.Int64),
			Name:     rName.String,
			Level:    int(rLevel.Int64),
			Capabilities: model.Capabilities{
				ViewAllData:       all.Bool,
				ViewHierarchyData: hier.Bool,
				ManageTeam:        team.Bool,
				ManageRoles:       roles.Bool,
				ManageClients:     clients.Bool,
				UploadContent:     upload.Bool,
				GenerateReports:   reports.Bool,
			},
		}
	}
	return &u, nil
}

// GetByID loads a user together with its role.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, "SELECT "+userColumns+userFrom+" WHERE u.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByEmail loads a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.q.QueryRowContext(ctx, "SELECT "+userColumns+userFrom+" WHERE u.email = ? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListByTenant returns every user of a tenant, active or not, ordered
// by id.
func (r *UserRepo) ListByTenant(ctx context.Context, tenantID uint64) ([]model.User, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+userColumns+userFrom+" WHERE u.tenant_id = ? ORDER BY u.id", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ActiveSubordinates returns the direct reports of userID that are
// active in their tenant.  Served by the (manager_id,
// is_active_in_tenant) index.
func (r *UserRepo) ActiveSubordinates(ctx context.Context, userID uint64) ([]uint64, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id FROM users WHERE manager_id = ? AND is_active_in_tenant = 1 ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Lookup returns the hierarchy view of one user.
func (r *UserRepo) Lookup(ctx context.Context, userID uint64) (hierarchy.Node, error) {
	var (
		n             = hierarchy.Node{ID: userID}
		tenant, mgrID sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT tenant_id, manager_id, is_active_in_tenant FROM users WHERE id = ?", userID).
		Scan(&tenant, &mgrID, &n.IsActiveInTenant)
	if errors.Is(err, sql.ErrNoRows) {
		return hierarchy.Node{}, hierarchy.ErrUserNotFound
	}
	if err != nil {
		return hierarchy.Node{}, err
	}
	n.TenantID, n.ManagerID = nullID(tenant), nullID(mgrID)
	return n, nil
}

// SetManager replaces the manager of userID and returns the previous
// one.  The user row is locked while the old value is read so the
// returned manager is the one actually replaced.
func (r *UserRepo) SetManager(ctx context.Context, userID uint64, managerID *uint64) (*uint64, error) {
	var old *uint64
	err := inTx(ctx, r.q, func(q querier) error {
		var prev sql.NullInt64
		err := q.QueryRowContext(ctx, "SELECT manager_id FROM users WHERE id = ? FOR UPDATE", userID).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"UPDATE users SET manager_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			argID(managerID), userID); err != nil {
			if isForeignKey(err) {
				return ErrNotFound
			}
			return err
		}
		old = nullID(prev)
		return nil
	})
	return old, err
}

// SetActive toggles tenant membership.  Deactivated users drop out of
// every subordinate set but keep their manager edge.
func (r *UserRepo) SetActive(ctx context.Context, userID uint64, active bool) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE users SET is_active_in_tenant = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", active, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// tenantOf returns the tenant of a user, nil when unset or unknown.
func (r *UserRepo) tenantOf(ctx context.Context, userID uint64) (*uint64, error) {
	var t sql.NullInt64
	err := r.q.QueryRowContext(ctx, "SELECT tenant_id FROM users WHERE id = ?", userID).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nullID(t), nil
}

// orphans lists users without a tenant, optionally only the one with
// the given email.
func (r *UserRepo) orphans(ctx context.Context, email string) ([]model.User, error) {
	q := "SELECT " + userColumns + userFrom + " WHERE u.tenant_id IS NULL"
	var args []any
	if email != "" {
		q += " AND u.email = ?"
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	rows, err := r.q.QueryContext(ctx, q+" ORDER BY u.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// assignTenant makes userID an active member of tenantID with roleID.
func (r *UserRepo) assignTenant(ctx context.Context, userID, tenantID, roleID uint64, joinedAt time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET tenant_id = ?, role_id = ?, is_active_in_tenant = 1, joined_at = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		tenantID, roleID, joinedAt, userID)
	return err
}
