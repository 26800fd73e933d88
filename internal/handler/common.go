package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/hierarchy"
	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/repository"
	"github.com/iliyamo/sales-tenancy/internal/service"
)

const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// pageFrom reads ?limit and ?offset.  Missing values fall back to the
// repository defaults.
func pageFrom(c echo.Context) (repository.Page, bool) {
	var p repository.Page
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, false
		}
		p.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, false
		}
		p.Offset = n
	}
	return p, true
}

// writeError maps errors from write paths onto responses.  Anything
// unrecognised is logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, hierarchy.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, hierarchy.ErrCrossTenant):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "manager belongs to another tenant"})
	case errors.Is(err, hierarchy.ErrCycle):
		return c.JSON(http.StatusConflict, echo.Map{"error": "change would create a manager cycle"})
	}
	return internalError(c, err, "request failed")
}

// internalError logs err and answers 500 with msg.  Read paths use it
// directly so a hierarchy fault never degrades into a wider result.
func internalError(c echo.Context, err error, msg string) error {
	logger.FromContext(c.Request().Context()).Error(msg, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}
