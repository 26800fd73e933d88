package model

import "time"

// Team is a named grouping of users inside one tenant, optionally led
// by a user.  Corresponds to a row in the `teams` table.
type Team struct {
	ID        uint64    // teams.id
	TenantID  uint64    // teams.tenant_id
	Name      string    // teams.name
	LeadID    *uint64   // teams.lead_id (nullable)
	CreatedAt time.Time // teams.created_at
}

// TeamMembership is the explicit join between a user and a team.  A user
// may belong to several teams at once; (UserID, TeamID) is unique.
// Removing a member clears IsActive instead of deleting the row, so the
// flag, not the row, decides current membership.
type TeamMembership struct {
	ID       uint64    // team_memberships.id
	UserID   uint64    // team_memberships.user_id
	TeamID   uint64    // team_memberships.team_id
	IsActive bool      // team_memberships.is_active
	JoinedAt time.Time // team_memberships.joined_at
}
