// Package authz implements the ownership rule applied to every
// resource-scoped operation: an account may act on a resource iff it owns
// it or the caller is an admin. The guard is a plain function over an
// explicit caller value so it can be tested without a web server.
package authz

import (
	"errors"

	"trainhub/internal/model"

	"github.com/labstack/echo/v4"
)

// ErrUnauthenticated is returned when no verified identity is attached to
// the request context.
var ErrUnauthenticated = errors.New("no authenticated caller in request context")

// Caller is the verified identity of the requester, resolved once per
// request from the JWT claims. It is passed explicitly into every
// authorization decision; there is no ambient request state.
type Caller struct {
	AccountID uint
	Role      string
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool {
	return d == Allow
}

// Authorize decides whether the caller may act on a resource owned by
// resourceOwnerID. Allow iff the caller is an admin or owns the resource.
func Authorize(caller Caller, resourceOwnerID uint) Decision {
	if caller.IsAdmin() {
		return Allow
	}
	if caller.AccountID == resourceOwnerID {
		return Allow
	}
	return Deny
}

// RequireRole decides whether the caller holds the given role. Used for the
// coarse admin-only surfaces before any per-resource check is reached.
func RequireRole(caller Caller, role string) Decision {
	if caller.Role == role {
		return Allow
	}
	return Deny
}

// CallerFromContext assembles the Caller from the values the auth
// middleware stored in the echo context.
func CallerFromContext(c echo.Context) (Caller, error) {
	accountID, ok := c.Get("account_id").(uint)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	role, ok := c.Get("role").(string)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	return Caller{AccountID: accountID, Role: role}, nil
}
