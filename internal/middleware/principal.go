package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/repository"
)

// UserLoader loads a user together with its role.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// LoadPrincipal resolves the authenticated user id into the full user and
// role and stores it under "principal".  It must run after JWTAuth.
// Every request sees the current role, so capability changes take effect
// without reissuing tokens.  Members deactivated in their tenant are
// rejected with 403.
func LoadPrincipal(users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			ctx := c.Request().Context()
			u, err := users.GetByID(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
			}
			if err != nil {
				logger.FromContext(ctx).Error("load principal", zap.Uint64("user_id", id), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if u.TenantID != nil && !u.IsActiveInTenant {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "inactive in tenant"})
			}
			fields := []zap.Field{zap.Uint64("user_id", u.ID)}
			if u.TenantID != nil {
				fields = append(fields, zap.Uint64("tenant_id", *u.TenantID))
			}
			c.SetRequest(c.Request().WithContext(logger.WithContext(ctx, logger.FromContext(ctx).With(fields...))))
			c.Set(ctxPrincipal, u)
			return next(c)
		}
	}
}

// Principal returns the user loaded by LoadPrincipal, or nil.
func Principal(c echo.Context) *model.User {
	u, _ := c.Get(ctxPrincipal).(*model.User)
	return u
}

// RequireCapability rejects requests whose principal lacks the named role
// flag with 403.  A principal outside any tenant holds no capability.
func RequireCapability(name model.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := Principal(c)
			if u == nil || u.TenantID == nil || !u.Capabilities().Has(name) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "missing": string(name)})
			}
			return next(c)
		}
	}
}
