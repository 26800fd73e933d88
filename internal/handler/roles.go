package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/repository"
)

// RoleStore reads and removes the roles of a tenant.
type RoleStore interface {
	ListByTenant(ctx context.Context, tenantID uint64) ([]model.Role, error)
	Delete(ctx context.Context, tenantID, roleID uint64) error
}

type RoleHandler struct {
	Roles RoleStore
}

func NewRoleHandler(r RoleStore) *RoleHandler { return &RoleHandler{Roles: r} }

// List handles GET /v1/roles.
func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	roles, err := h.Roles.ListByTenant(ctx, *middleware.Principal(c).TenantID)
	if err != nil {
		return internalError(c, err, "query failed")
	}
	out := make([]roleView, 0, len(roles))
	for i := range roles {
		out = append(out, viewRole(&roles[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": out})
}

// Delete handles DELETE /v1/roles/:id.  Roles still held by a user are
// kept and answer 409.
func (h *RoleHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Roles.Delete(ctx, *middleware.Principal(c).TenantID, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "role is still assigned"})
		}
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
