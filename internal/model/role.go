package model

// Capabilities is the fixed set of boolean permission flags carried by
// a role.  Permission checks are flag reads; there is no role type
// dispatch anywhere in the code base.
type Capabilities struct {
	ViewAllData       bool // roles.can_view_all_data
	ViewHierarchyData bool // roles.can_view_hierarchy_data
	ManageTeam        bool // roles.can_manage_team
	ManageRoles       bool // roles.can_manage_roles
	ManageClients     bool // roles.can_manage_clients
	UploadContent     bool // roles.can_upload_content
	GenerateReports   bool // roles.can_generate_reports
}

// Role represents a row in the `roles` table.  Roles are scoped to one
// tenant and (TenantID, Name) is unique.  Level 0 is the most
// privileged.
type Role struct {
	ID       uint64 // roles.id
	TenantID uint64 // roles.tenant_id
	Name     string // roles.name
	Level    int    // roles.level

	Capabilities
}

const (
	RoleOwner       = "Owner"
	RoleManager     = "Manager"
	RoleContributor = "Contributor"
)

// DefaultRoles returns the role set every tenant is provisioned with.
// The returned roles have no ID or TenantID yet.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:  RoleOwner,
			Level: 0,
			Capabilities: Capabilities{
				ViewAllData:       true,
				ViewHierarchyData: true,
				ManageTeam:        true,
				ManageRoles:       true,
				ManageClients:     true,
				UploadContent:     true,
				GenerateReports:   true,
			},
		},
		{
			Name:  RoleManager,
			Level: 1,
			Capabilities: Capabilities{
				ViewHierarchyData: true,
				ManageTeam:        true,
				ManageClients:     true,
				UploadContent:     true,
				GenerateReports:   true,
			},
		},
		{
			Name:  RoleContributor,
			Level: 2,
			Capabilities: Capabilities{
				ManageClients:   true,
				UploadContent:   true,
				GenerateReports: true,
			},
		},
	}
}

// Capability names a single flag so middleware can require it by value.
type Capability string

const (
	CapViewAllData       Capability = "view_all_data"
	CapViewHierarchyData Capability = "view_hierarchy_data"
	CapManageTeam        Capability = "manage_team"
	CapManageRoles       Capability = "manage_roles"
	CapManageClients     Capability = "manage_clients"
	CapUploadContent     Capability = "upload_content"
	CapGenerateReports   Capability = "generate_reports"
)

// Has reports whether the named flag is set.  Unknown names are never set.
func (c Capabilities) Has(name Capability) bool {
	switch name {
	case CapViewAllData:
		return c.ViewAllData
	case CapViewHierarchyData:
		return c.ViewHierarchyData
	case CapManageTeam:
		return c.ManageTeam
	case CapManageRoles:
		return c.ManageRoles
	case CapManageClients:
		return c.ManageClients
	case CapUploadContent:
		return c.UploadContent
	case CapGenerateReports:
		return c.GenerateReports
	}
	return false
}
