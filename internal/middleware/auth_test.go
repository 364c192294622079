package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"trainhub/internal/model"
	"trainhub/pkg/config"
	"trainhub/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
}

func invokeAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/profile", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("logger", zap.NewNop())

	nextCalled := false
	handler := AuthMiddleware(func(c echo.Context) error {
		nextCalled = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, c, nextCalled
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		rec, _, nextCalled := invokeAuth(t, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, nextCalled)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		rec, _, nextCalled := invokeAuth(t, "Basic dXNlcjpwYXNz")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, nextCalled)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, _, nextCalled := invokeAuth(t, "Bearer not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, nextCalled)
	})

	t.Run("valid token sets identity", func(t *testing.T) {
		token, err := jwtutil.GenerateToken("ops@example.com", 7, model.RoleUser)
		require.NoError(t, err)

		rec, c, nextCalled := invokeAuth(t, "Bearer "+token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, nextCalled)
		assert.Equal(t, uint(7), c.Get("account_id"))
		assert.Equal(t, "ops@example.com", c.Get("email"))
		assert.Equal(t, model.RoleUser, c.Get("role"))
	})

	t.Run("virtual account is rejected", func(t *testing.T) {
		token, err := jwtutil.GenerateToken("trainee@example.com", 9, model.RoleVirtual)
		require.NoError(t, err)

		rec, _, nextCalled := invokeAuth(t, "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, nextCalled)
	})
}

func TestRequireAdmin(t *testing.T) {
	run := func(t *testing.T, role interface{}) (*httptest.ResponseRecorder, bool) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("logger", zap.NewNop())
		if role != nil {
			c.Set("role", role)
		}

		nextCalled := false
		handler := RequireAdmin(func(c echo.Context) error {
			nextCalled = true
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, handler(c))
		return rec, nextCalled
	}

	t.Run("admin passes", func(t *testing.T) {
		rec, nextCalled := run(t, model.RoleAdmin)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, nextCalled)
	})

	t.Run("user is forbidden", func(t *testing.T) {
		rec, nextCalled := run(t, model.RoleUser)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, nextCalled)
	})

	t.Run("missing role is forbidden", func(t *testing.T) {
		rec, nextCalled := run(t, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, nextCalled)
	})
}
