package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sales-tenancy/internal/handler"
	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/model"
)

// API bundles the handlers served under the authenticated /v1 group.
type API struct {
	Auth      *handler.AuthHandler
	Records   *handler.RecordHandler
	Hierarchy *handler.HierarchyHandler
	Teams     *handler.TeamHandler
	Roles     *handler.RoleHandler
}

// RegisterAPI registers the protected endpoints.  Every route requires a
// valid access token and a principal that still exists; management
// routes additionally require the matching role flag.
func RegisterAPI(e *echo.Echo, api API, jwtSecret string, users middleware.UserLoader) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.LoadPrincipal(users),
	)

	g.GET("/me", api.Auth.Me)

	// ---- Records (visibility scoped) ----
	g.GET("/customers", api.Records.ListCustomers)
	g.GET("/customers/:id", api.Records.GetCustomer)
	g.GET("/recordings", api.Records.ListRecordings)
	g.GET("/recordings/:id", api.Records.GetRecording)
	g.GET("/reports", api.Records.ListReports)
	g.GET("/reports/:id", api.Records.GetReport)
	g.GET("/sales-rooms", api.Records.ListSalesRooms)
	g.GET("/sales-rooms/:id", api.Records.GetSalesRoom)

	// ---- Hierarchy ----
	g.GET("/me/subordinates", api.Hierarchy.MySubordinates)
	g.GET("/me/level", api.Hierarchy.MyLevel)
	g.PUT("/users/:id/manager", api.Hierarchy.SetManager, middleware.RequireCapability(model.CapManageTeam))
	g.PUT("/users/:id/active", api.Hierarchy.SetActive, middleware.RequireCapability(model.CapManageTeam))
	g.GET("/org-chart", api.Hierarchy.OrgChart, middleware.RequireCapability(model.CapViewAllData))

	// ---- Teams ----
	manageTeam := middleware.RequireCapability(model.CapManageTeam)
	g.POST("/teams", api.Teams.Create, manageTeam)
	g.GET("/teams/:id/members", api.Teams.Members, manageTeam)
	g.POST("/teams/:id/members", api.Teams.AddMember, manageTeam)
	g.DELETE("/teams/:id/members/:user_id", api.Teams.RemoveMember, manageTeam)

	// ---- Roles ----
	manageRoles := middleware.RequireCapability(model.CapManageRoles)
	g.GET("/roles", api.Roles.List, manageRoles)
	g.DELETE("/roles/:id", api.Roles.Delete, manageRoles)
}
