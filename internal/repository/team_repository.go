package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

// TeamRepo manages teams and their memberships.
type TeamRepo struct{ q querier }

func NewTeamRepo(db *sql.DB) *TeamRepo { return &TeamRepo{q: db} }

// Create inserts t and fills in its ID and CreatedAt.  A duplicate name
// inside the tenant yields ErrConflict.
func (r *TeamRepo) Create(ctx context.Context, t *model.Team) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO teams (tenant_id, name, lead_id, created_at) VALUES (?, ?, ?, ?)",
		t.TenantID, t.Name, argID(t.LeadID), now)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID, t.CreatedAt = uint64(id), now
	return nil
}

// Get returns team id when it belongs to tenantID.  Teams of other
// tenants are reported as ErrNotFound.
func (r *TeamRepo) Get(ctx context.Context, tenantID, id uint64) (*model.Team, error) {
	var (
		t    model.Team
		lead sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT id, tenant_id, name, lead_id, created_at FROM teams WHERE id = ? AND tenant_id = ?",
		id, tenantID).Scan(&t.ID, &t.TenantID, &t.Name, &lead, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.LeadID = nullID(lead)
	return &t, nil
}

// AddMember makes userID an active member of teamID.  A deactivated
// membership is reactivated with a fresh join time; an active one is
// left untouched.
func (r *TeamRepo) AddMember(ctx context.Context, teamID, userID uint64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO team_memberships (user_id, team_id, is_active, joined_at) VALUES (?, ?, 1, ?)
		 ON DUPLICATE KEY UPDATE joined_at = IF(is_active, joined_at, VALUES(joined_at)), is_active = 1`,
		userID, teamID, time.Now().UTC())
	if isForeignKey(err) {
		return ErrNotFound
	}
	return err
}

// RemoveMember deactivates the membership of userID in teamID.  The row
// is kept.
func (r *TeamRepo) RemoveMember(ctx context.Context, teamID, userID uint64) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE team_memberships SET is_active = 0 WHERE team_id = ? AND user_id = ? AND is_active = 1",
		teamID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveMembers lists the active memberships of teamID by join time.
func (r *TeamRepo) ActiveMembers(ctx context.Context, teamID uint64) ([]model.TeamMembership, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, team_id, is_active, joined_at FROM team_memberships
		 WHERE team_id = ? AND is_active = 1 ORDER BY joined_at, id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TeamMembership
	for rows.Next() {
		var m model.TeamMembership
		if err := rows.Scan(&m.ID, &m.UserID, &m.TeamID, &m.IsActive, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
