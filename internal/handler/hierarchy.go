package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/service"
)

// Tree answers reporting-tree questions for one user.
type Tree interface {
	SubordinateIDs(ctx context.Context, userID uint64, useCache bool) (hierarchy.IDSet, error)
	HierarchyLevel(ctx context.Context, userID uint64) (int, error)
}

// Org changes the reporting structure.
type Org interface {
	ReassignManager(ctx context.Context, actor *model.User, userID uint64, managerID *uint64) error
	SetActive(ctx context.Context, actor *model.User, userID uint64, active bool) error
	OrgChart(ctx context.Context, actor *model.User) (service.OrgChart, error)
}

// HierarchyHandler exposes the reporting tree.
type HierarchyHandler struct {
	Tree     Tree
	Org      Org
	UseCache bool
}

func NewHierarchyHandler(t Tree, o Org, useCache bool) *HierarchyHandler {
	return &HierarchyHandler{Tree: t, Org: o, UseCache: useCache}
}

type managerReq struct {
	// ManagerID null detaches the user to the top of the tree.
	ManagerID *uint64 `json:"manager_id"`
}

type activeReq struct {
	Active *bool `json:"active"`
}

// MySubordinates lists every active user below the principal.
func (h *HierarchyHandler) MySubordinates(c echo.Context) error {
	u := middleware.Principal(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	ids, err := h.Tree.SubordinateIDs(ctx, u.ID, h.UseCache)
	if err != nil {
		return internalError(c, err, "hierarchy unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": u.ID, "subordinates": ids.Sorted()})
}

// MyLevel returns the principal's depth in the tree, 0 at the top.
func (h *HierarchyHandler) MyLevel(c echo.Context) error {
	u := middleware.Principal(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	level, err := h.Tree.HierarchyLevel(ctx, u.ID)
	if err != nil {
		return internalError(c, err, "hierarchy unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": u.ID, "level": level, "manager_id": u.ManagerID})
}

// SetManager handles PUT /v1/users/:id/manager.
func (h *HierarchyHandler) SetManager(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req managerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ManagerID != nil && *req.ManagerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid manager_id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Org.ReassignManager(ctx, middleware.Principal(c), id, req.ManagerID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "manager_id": req.ManagerID})
}

// SetActive handles PUT /v1/users/:id/active.
func (h *HierarchyHandler) SetActive(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req activeReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Org.SetActive(ctx, middleware.Principal(c), id, *req.Active); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// OrgChart returns the reporting forest of the principal's tenant.
func (h *HierarchyHandler) OrgChart(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	chart, err := h.Org.OrgChart(ctx, middleware.Principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, chart)
}
