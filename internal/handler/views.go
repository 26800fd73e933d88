package handler

import (
	"time"

	"github.com/iliyamo/sales-tenancy/internal/model"
)

// ----- response DTOs -----

type userPart struct {
	ID       uint64  `json:"id"`
	Email    string  `json:"email"`
	TenantID *uint64 `json:"tenant_id"`
	Role     string  `json:"role,omitempty"`
}

func userView(u *model.User) userPart {
	p := userPart{ID: u.ID, Email: u.Email, TenantID: u.TenantID}
	if u.Role != nil {
		p.Role = u.Role.Name
	}
	return p
}

type tenantView struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type customerView struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	TenantID     *uint64   `json:"tenant_id"`
	OwnerID      *uint64   `json:"owner_id"`
	CreatedBy    *uint64   `json:"created_by"`
	PrimaryOwner *uint64   `json:"primary_owner_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func viewCustomer(c *model.Customer) customerView {
	return customerView{c.ID, c.Name, c.TenantID, c.Owner(), c.CreatedBy, c.PrimaryOwner, c.CreatedAt}
}

type recordingView struct {
	ID         uint64    `json:"id"`
	Title      string    `json:"title"`
	TenantID   *uint64   `json:"tenant_id"`
	OwnerID    *uint64   `json:"owner_id"`
	CustomerID *uint64   `json:"customer_id"`
	UploadedBy *uint64   `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func viewRecording(r *model.Recording) recordingView {
	return recordingView{r.ID, r.Title, r.TenantID, r.Owner(), r.CustomerID, r.UploadedBy, r.CreatedAt}
}

type reportView struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	TenantID    *uint64   `json:"tenant_id"`
	OwnerID     *uint64   `json:"owner_id"`
	RecordingID *uint64   `json:"recording_id"`
	CustomerID  *uint64   `json:"customer_id"`
	CreatedBy   *uint64   `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewReport(r *model.Report) reportView {
	return reportView{r.ID, r.Title, r.TenantID, r.Owner(), r.RecordingID, r.CustomerID, r.CreatedBy, r.CreatedAt}
}

type salesRoomView struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	TenantID   *uint64   `json:"tenant_id"`
	OwnerID    *uint64   `json:"owner_id"`
	CustomerID *uint64   `json:"customer_id"`
	CreatedBy  *uint64   `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func viewSalesRoom(s *model.SalesRoom) salesRoomView {
	return salesRoomView{s.ID, s.Name, s.TenantID, s.Owner(), s.CustomerID, s.CreatedBy, s.CreatedAt}
}

type roleView struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	Level             int    `json:"level"`
	CanViewAllData    bool   `json:"can_view_all_data"`
	CanViewHierarchy  bool   `json:"can_view_hierarchy_data"`
	CanManageTeam     bool   `json:"can_manage_team"`
	CanManageRoles    bool   `json:"can_manage_roles"`
	CanManageClients  bool   `json:"can_manage_clients"`
	CanUploadContent  bool   `json:"can_upload_content"`
	CanGenerateReport bool   `json:"can_generate_reports"`
}

func viewRole(r *model.Role) roleView {
	c := r.Capabilities
	return roleView{r.ID, r.Name, r.Level, c.ViewAllData, c.ViewHierarchyData,
		c.ManageTeam, c.ManageRoles, c.ManageClients, c.UploadContent, c.GenerateReports}
}

type teamView struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	LeadID    *uint64   `json:"lead_id"`
	CreatedAt time.Time `json:"created_at"`
}

func viewTeam(t *model.Team) teamView {
	return teamView{t.ID, t.Name, t.LeadID, t.CreatedAt}
}

type memberView struct {
	UserID   uint64    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
