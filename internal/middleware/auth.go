package middleware

import (
	"net/http"
	"strings"

	"trainhub/internal/model"
	"trainhub/pkg/jwtutil"
	"trainhub/pkg/logger"
	"trainhub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token from the Authorization header and
// stores the verified identity in the request context.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// Virtual trainee identities never reach the management API.
		if claims.Role == model.RoleVirtual {
			log.Warn("Virtual account attempted management API access",
				zap.Uint("account_id", claims.AccountID))
			prometheus.RecordAuthError("virtual_account_rejected")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "virtual accounts cannot access this API"})
		}

		// Store the verified identity for CallerFromContext
		c.Set("account_id", claims.AccountID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)

		log = log.With(
			zap.Uint("account_id", claims.AccountID),
			zap.String("role", claims.Role),
		)
		c.Set("logger", log)

		return next(c)
	}
}

// RequireAdmin gates admin-only surfaces. Applied after AuthMiddleware and
// before any per-resource ownership check is reached.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		role, ok := c.Get("role").(string)
		if !ok || role != model.RoleAdmin {
			log.Warn("Non-admin attempted admin operation", zap.String("role", role))
			prometheus.RecordAuthError("admin_required")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin role required"})
		}

		return next(c)
	}
}
