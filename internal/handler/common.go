package handler

import (
	"strconv"
	"time"

	"trainhub/internal/alert"
	"trainhub/internal/authz"

	"github.com/labstack/echo/v4"
)

// Shared alert subsystem handles, wired once from main.
var (
	alertStore        *alert.Store
	alertHub          *alert.Hub
	alertPollInterval time.Duration
)

// InitAlerts wires the alert store, hub and poll interval into the handler
// package. hub may be nil to disable the push path.
func InitAlerts(store *alert.Store, hub *alert.Hub, pollInterval time.Duration) {
	alertStore = store
	alertHub = hub
	alertPollInterval = pollInterval
}

// scopeAccountID returns the account a list/read operation is scoped to.
// Admins may widen the scope with the account_id query parameter; everyone
// else is always pinned to their own account no matter what they pass.
func scopeAccountID(c echo.Context, caller authz.Caller) uint {
	if caller.IsAdmin() {
		if raw := c.QueryParam("account_id"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
				return uint(id)
			}
		}
	}
	return caller.AccountID
}

// parseIDParam parses the :id route parameter.
func parseIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// pagination parses page/limit query parameters with the service defaults.
func pagination(c echo.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	offset = (page - 1) * limit
	return page, limit, offset
}

// paginationEnvelope builds the pagination section of list responses.
func paginationEnvelope(page, limit int, total int64) echo.Map {
	return echo.Map{
		"current_page": page,
		"limit":        limit,
		"total":        total,
		"total_pages":  (int(total) + limit - 1) / limit,
	}
}
