package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"trainhub/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		ownerID uint
		want    Decision
	}{
		{
			name:    "owner may act on own resource",
			caller:  Caller{AccountID: 1, Role: model.RoleUser},
			ownerID: 1,
			want:    Allow,
		},
		{
			name:    "admin may act on any resource",
			caller:  Caller{AccountID: 99, Role: model.RoleAdmin},
			ownerID: 1,
			want:    Allow,
		},
		{
			name:    "admin may act on own resource",
			caller:  Caller{AccountID: 1, Role: model.RoleAdmin},
			ownerID: 1,
			want:    Allow,
		},
		{
			name:    "other user is denied",
			caller:  Caller{AccountID: 2, Role: model.RoleUser},
			ownerID: 1,
			want:    Deny,
		},
		{
			name:    "virtual account is denied on foreign resource",
			caller:  Caller{AccountID: 3, Role: model.RoleVirtual},
			ownerID: 1,
			want:    Deny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Authorize(tt.caller, tt.ownerID)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == Allow, got.Allowed())
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := Caller{AccountID: 1, Role: model.RoleAdmin}
	user := Caller{AccountID: 2, Role: model.RoleUser}

	assert.Equal(t, Allow, RequireRole(admin, model.RoleAdmin))
	assert.Equal(t, Deny, RequireRole(user, model.RoleAdmin))
	assert.Equal(t, Allow, RequireRole(user, model.RoleUser))
}

func TestCallerFromContext(t *testing.T) {
	e := echo.New()

	newContext := func() echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec)
	}

	t.Run("resolves identity set by middleware", func(t *testing.T) {
		c := newContext()
		c.Set("account_id", uint(7))
		c.Set("role", model.RoleUser)

		caller, err := CallerFromContext(c)
		require.NoError(t, err)
		assert.Equal(t, uint(7), caller.AccountID)
		assert.Equal(t, model.RoleUser, caller.Role)
		assert.False(t, caller.IsAdmin())
	})

	t.Run("missing identity is unauthenticated", func(t *testing.T) {
		c := newContext()

		_, err := CallerFromContext(c)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("missing role is unauthenticated", func(t *testing.T) {
		c := newContext()
		c.Set("account_id", uint(7))

		_, err := CallerFromContext(c)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
