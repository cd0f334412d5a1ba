package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin       = "admin"
	RoleFrontOffice = "front-office"
	RoleDoctor      = "doctor"
	RoleCounseling  = "counseling"
	RoleAnalytics   = "analytics"
)

// AllRoles lists every clinic role; admin is implied.
var AllRoles = []string{RoleFrontOffice, RoleDoctor, RoleCounseling, RoleAnalytics}

// HasRole reports whether the caller holds role. Admin holds every role.
func HasRole(ctx context.Context, role string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == role || has == RoleAdmin {
			return true
		}
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, required := range roles {
				if HasRole(ctx, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// ValidRole reports whether r names a clinic role.
func ValidRole(r string) bool {
	if r == RoleAdmin {
		return true
	}
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}
