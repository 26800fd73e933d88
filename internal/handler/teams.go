package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/repository"
)

// TeamStore persists teams and memberships.
type TeamStore interface {
	Create(ctx context.Context, t *model.Team) error
	Get(ctx context.Context, tenantID, id uint64) (*model.Team, error)
	AddMember(ctx context.Context, teamID, userID uint64) error
	RemoveMember(ctx context.Context, teamID, userID uint64) error
	ActiveMembers(ctx context.Context, teamID uint64) ([]model.TeamMembership, error)
}

// UserByID loads a single user.
type UserByID interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TeamHandler manages teams inside the principal's tenant.  Teams and
// users of other tenants answer 404.
type TeamHandler struct {
	Teams TeamStore
	Users UserByID
}

func NewTeamHandler(t TeamStore, u UserByID) *TeamHandler {
	return &TeamHandler{Teams: t, Users: u}
}

type createTeamReq struct {
	Name   string  `json:"name"`
	LeadID *uint64 `json:"lead_id"`
}

type addMemberReq struct {
	UserID uint64 `json:"user_id"`
}

// sameTenantUser loads id and hides users of other tenants.
func (h *TeamHandler) sameTenantUser(ctx context.Context, actor *model.User, id uint64) error {
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.SameTenant(u) {
		return repository.ErrNotFound
	}
	return nil
}

// Create handles POST /v1/teams.
func (h *TeamHandler) Create(c echo.Context) error {
	var req createTeamReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	actor := middleware.Principal(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	if req.LeadID != nil {
		if err := h.sameTenantUser(ctx, actor, *req.LeadID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "lead not in tenant"})
			}
			return internalError(c, err, "load lead failed")
		}
	}
	t := &model.Team{TenantID: *actor.TenantID, Name: req.Name, LeadID: req.LeadID}
	if err := h.Teams.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "team name already exists"})
		}
		return internalError(c, err, "create team failed")
	}
	return c.JSON(http.StatusCreated, viewTeam(t))
}

// team resolves :id inside the principal's tenant.
func (h *TeamHandler) team(ctx context.Context, c echo.Context) (*model.Team, error) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, repository.ErrNotFound
	}
	return h.Teams.Get(ctx, *middleware.Principal(c).TenantID, id)
}

// AddMember handles POST /v1/teams/:id/members.
func (h *TeamHandler) AddMember(c echo.Context) error {
	var req addMemberReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	t, err := h.team(ctx, c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.sameTenantUser(ctx, middleware.Principal(c), req.UserID); err != nil {
		return writeError(c, err)
	}
	if err := h.Teams.AddMember(ctx, t.ID, req.UserID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveMember handles DELETE /v1/teams/:id/members/:user_id.
func (h *TeamHandler) RemoveMember(c echo.Context) error {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	t, err := h.team(ctx, c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Teams.RemoveMember(ctx, t.ID, userID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Members handles GET /v1/teams/:id/members.
func (h *TeamHandler) Members(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	t, err := h.team(ctx, c)
	if err != nil {
		return writeError(c, err)
	}
	ms, err := h.Teams.ActiveMembers(ctx, t.ID)
	if err != nil {
		return internalError(c, err, "query failed")
	}
	out := make([]memberView, 0, len(ms))
	for _, m := range ms {
		out = append(out, memberView{UserID: m.UserID, JoinedAt: m.JoinedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"team": viewTeam(t), "members": out})
}
