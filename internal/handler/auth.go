package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/config"
	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/repository"
	"github.com/iliyamo/sales-tenancy/internal/utils"
)

// UserByEmail loads a user for sign-in.
type UserByEmail interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// TenantByID loads the principal's company.
type TenantByID interface {
	GetByID(ctx context.Context, id uint64) (*model.Tenant, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   UserByEmail
	Tenants TenantByID
}

func NewAuthHandler(cfg config.Config, u UserByEmail, t TenantByID) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tenants: t}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login verifies credentials and returns an access token carrying the
// user's tenant.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return internalError(c, err, "query failed")
	}
	if err := utils.CheckPassword(u.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, utils.ErrPasswordMismatch) {
			logger.FromContext(ctx).Warn("login against unusable hash", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if u.TenantID != nil && !u.IsActiveInTenant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "inactive in tenant"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.TenantID, h.Cfg.AccessTTL)
	if err != nil {
		return internalError(c, err, "issue access failed")
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userView(u),
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me returns the authenticated principal with its capabilities and
// company.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.Principal(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resp := echo.Map{"user": userView(u), "manager_id": u.ManagerID}
	if u.Role != nil {
		resp["role"] = viewRole(u.Role)
	}
	if u.TenantID != nil && h.Tenants != nil {
		ctx, cancel := withTimeout(c)
		defer cancel()
		t, err := h.Tenants.GetByID(ctx, *u.TenantID)
		if err != nil {
			return internalError(c, err, "load tenant failed")
		}
		resp["tenant"] = tenantView{ID: t.ID, Name: t.Name, IsActive: t.IsActive}
	}
	return c.JSON(http.StatusOK, resp)
}
