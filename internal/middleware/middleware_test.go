package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sales-tenancy/internal/config"
	"github.com/iliyamo/sales-tenancy/internal/model"
	"github.com/iliyamo/sales-tenancy/internal/repository"
	"github.com/iliyamo/sales-tenancy/internal/utils"
)

const secret = "test-secret"

type stubUsers map[uint64]*model.User

func (s stubUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func tenantPtr(v uint64) *uint64 { return &v }

func users() stubUsers {
	roles := model.DefaultRoles()
	owner, contributor := roles[0], roles[2]
	return stubUsers{
		1: {ID: 1, TenantID: tenantPtr(1), IsActiveInTenant: true, Role: &owner},
		2: {ID: 2, TenantID: tenantPtr(1), IsActiveInTenant: true, Role: &contributor},
		3: {ID: 3},
		4: {ID: 4, TenantID: tenantPtr(1), IsActiveInTenant: false, Role: &contributor},
	}
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), LoadPrincipal(users()))
	g.GET("/whoami", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": Principal(c).ID})
	})
	g.PUT("/manage", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RequireCapability(model.CapManageTeam))
	return e
}

func do(e *echo.Echo, method, path string, userID uint64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != 0 {
		tok, _ := utils.NewAccessToken(secret, userID, nil, time.Minute)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthRejectsMissingAndForgedTokens(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/whoami", 0).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	forged, err := utils.NewAccessToken("other-secret", 1, nil, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoadPrincipal(t *testing.T) {
	e := newServer(t)
	rec := do(e, http.MethodGet, "/v1/whoami", 2)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":2}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/whoami", 99).Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/v1/whoami", 4).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/whoami", 3).Code, "users awaiting a tenant may sign in")
}

func TestRequireCapability(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPut, "/v1/manage", 1).Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPut, "/v1/manage", 2).Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPut, "/v1/manage", 3).Code, "no tenant, no capability")
}

func TestRateLimitBlocksAfterCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 5 * time.Hour, Prefix: "rl:test",
	}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RateLimit(cfg, rdb))

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(e, http.MethodPost, "/login", 0).Code
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimitPassesWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/login", 0).Code)
	}
}
