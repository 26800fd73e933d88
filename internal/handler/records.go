package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sales-tenancy/internal/middleware"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/repository"
	"github.com/iliyamo/sales-tenancy/internal/visibility"
)

// Scoper computes the visibility scope of a principal.
type Scoper interface {
	Scope(ctx context.Context, user *model.User, kind model.EntityKind) (visibility.Scope, error)
}

// ScopedRepo reads owned records through a visibility scope.
type ScopedRepo[T any] interface {
	List(ctx context.Context, s visibility.Scope, p repository.Page) ([]T, error)
	Get(ctx context.Context, s visibility.Scope, id uint64) (*T, error)
}

// RecordHandler serves the read side of the owned record types.  Every
// query runs under the principal's visibility scope; records outside it
// are indistinguishable from missing ones.
type RecordHandler struct {
	Filter     Scoper
	Customers  ScopedRepo[model.Customer]
	Recordings ScopedRepo[model.Recording]
	Reports    ScopedRepo[model.Report]
	SalesRooms ScopedRepo[model.SalesRoom]
}

func NewRecordHandler(f Scoper, cu ScopedRepo[model.Customer], rec ScopedRepo[model.Recording],
	rep ScopedRepo[model.Report], sr ScopedRepo[model.SalesRoom]) *RecordHandler {
	return &RecordHandler{Filter: f, Customers: cu, Recordings: rec, Reports: rep, SalesRooms: sr}
}

func (h *RecordHandler) ListCustomers(c echo.Context) error {
	return listScoped(c, h.Filter, model.EntityCustomer, h.Customers, viewCustomer)
}

func (h *RecordHandler) GetCustomer(c echo.Context) error {
	return getScoped(c, h.Filter, model.EntityCustomer, h.Customers, viewCustomer)
}

func (h *RecordHandler) ListRecordings(c echo.Context) error {
	return listScoped(c, h.Filter, model.EntityRecording, h.Recordings, viewRecording)
}

func (h *RecordHandler) GetRecording(c echo.Context) error {
	return getScoped(c, h.Filter, model.EntityRecording, h.Recordings, viewRecording)
}

func (h *RecordHandler) ListReports(c echo.Context) error {
	return listScoped(c, h.Filter, model.EntityReport, h.Reports, viewReport)
}

func (h *RecordHandler) GetReport(c echo.Context) error {
	return getScoped(c, h.Filter, model.EntityReport, h.Reports, viewReport)
}

func (h *RecordHandler) ListSalesRooms(c echo.Context) error {
	return listScoped(c, h.Filter, model.EntitySalesRoom, h.SalesRooms, viewSalesRoom)
}

func (h *RecordHandler) GetSalesRoom(c echo.Context) error {
	return getScoped(c, h.Filter, model.EntitySalesRoom, h.SalesRooms, viewSalesRoom)
}

func listScoped[T, V any](c echo.Context, f Scoper, kind model.EntityKind, repo ScopedRepo[T], view func(*T) V) error {
	page, ok := pageFrom(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit/offset"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	scope, err := f.Scope(ctx, middleware.Principal(c), kind)
	if err != nil {
		return internalError(c, err, "visibility unavailable")
	}
	rows, err := repo.List(ctx, scope, page)
	if err != nil {
		return internalError(c, err, "query failed")
	}
	out := make([]V, 0, len(rows))
	for i := range rows {
		out = append(out, view(&rows[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "scope": scope.Tier})
}

func getScoped[T, V any](c echo.Context, f Scoper, kind model.EntityKind, repo ScopedRepo[T], view func(*T) V) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	scope, err := f.Scope(ctx, middleware.Principal(c), kind)
	if err != nil {
		return internalError(c, err, "visibility unavailable")
	}
	row, err := repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": kind.Name + " not found"})
		}
		return internalError(c, err, "query failed")
	}
	return c.JSON(http.StatusOK, view(row))
}
